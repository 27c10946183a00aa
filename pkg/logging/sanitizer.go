package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 160
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx in DSNs and driver errors
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Snowflake key-pair auth and BigQuery service-account material
	privateKeyPattern  = regexp.MustCompile(`(?i)(private_?key|privateKey)=[^;&\s]+`)
	credentialsPattern = regexp.MustCompile(`(?s)"private_key"\s*:\s*"[^"]*"`)

	// user:pass@host, also covers Snowflake's user:pass@account/db form
	userInfoPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)?[^:/\s@]+:[^@\s]+@([^/\s?]+)`)
)

// SanitizeConnectionString removes credentials from a DSN before it is logged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = privateKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return userInfoPattern.ReplaceAllString(sanitized, "${1}"+RedactedText+"@${2}")
}

// SanitizeError sanitizes driver errors, which frequently echo the DSN back.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := credentialsPattern.ReplaceAllString(err.Error(), `"private_key":"`+RedactedText+`"`)
	return SanitizeConnectionString(sanitized)
}

// SanitizeQuery truncates a generated SQL statement for logging.
// Profiling queries over wide tables can run to many kilobytes.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(query, "${1}="+RedactedText)
	return TruncateString(sanitized, MaxQueryLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
