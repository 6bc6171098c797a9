package pglisten

import (
	"strings"

	"github.com/lib/pq"
)

const (
	unlistenAllStatement = "UNLISTEN *"
	healthProbeStatement = "SELECT pg_backend_pid()"
)

func listenStatement(channel string) string {
	return "LISTEN " + pq.QuoteIdentifier(channel)
}

func unlistenStatement(channel string) string {
	return "UNLISTEN " + pq.QuoteIdentifier(channel)
}

// notifyStatement builds NOTIFY with an optional payload literal.
// pq.QuoteLiteral prefixes escape-string literals with a space, which is trimmed.
func notifyStatement(channel string, payload string, hasPayload bool) string {
	stmt := "NOTIFY " + pq.QuoteIdentifier(channel)
	if !hasPayload {
		return stmt
	}
	return stmt + ", " + strings.TrimLeft(pq.QuoteLiteral(payload), " ")
}
