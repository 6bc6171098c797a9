package client

import (
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config describes the connection target.
//
// Either ConnString (a libpq URL or key=value string) or Host must be set.
// When ConnString is set the discrete fields are ignored.
type Config struct {
	ConnString      string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string // disable, allow, prefer, require, verify-ca, verify-full
	ApplicationName string
	ConnectTimeout  time.Duration
}

var sslModes = []interface{}{"", "disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.When(c.ConnString == "", validation.Required)),
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.SSLMode, validation.In(sslModes...)),
		validation.Field(&c.ConnectTimeout, validation.Min(time.Duration(0))),
	)
}

// DSN returns the connection string understood by lib/pq.
func (c Config) DSN() string {
	if c.ConnString != "" {
		return c.ConnString
	}

	params := map[string]string{
		"host": c.Host,
	}
	if c.Port > 0 {
		params["port"] = fmt.Sprintf("%d", c.Port)
	}
	if c.User != "" {
		params["user"] = c.User
	}
	if c.Password != "" {
		params["password"] = c.Password
	}
	if c.Database != "" {
		params["dbname"] = c.Database
	}
	if c.SSLMode != "" {
		params["sslmode"] = c.SSLMode
	}
	if c.ApplicationName != "" {
		params["application_name"] = c.ApplicationName
	}
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		params["connect_timeout"] = fmt.Sprintf("%d", secs)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+quoteValue(params[k]))
	}
	return strings.Join(parts, " ")
}

// String returns the DSN with the password masked, for logging.
func (c Config) String() string {
	masked := c
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	if masked.ConnString != "" {
		return "conn_string=<redacted>"
	}
	return masked.DSN()
}

// quoteValue quotes a key=value connection parameter when needed.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
