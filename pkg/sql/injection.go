package sql

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// MaxIdentifierLength bounds each dot-separated part of a table name.
const MaxIdentifierLength = 255

// InjectionError reports a table name that looks like a SQL injection payload.
type InjectionError struct {
	Name        string
	Fingerprint string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("table name %q rejected: SQL injection pattern detected (fingerprint %s)", e.Name, e.Fingerprint)
}

// CheckTableName validates a possibly schema-qualified table name supplied by
// a caller. Names are quoted before use, but values that libinjection flags,
// or that carry statement terminators or comment markers, are refused outright.
func CheckTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("table name is required")
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return fmt.Errorf("table name %q has an empty part", name)
		}
		if len(part) > MaxIdentifierLength {
			return fmt.Errorf("table name part exceeds %d characters", MaxIdentifierLength)
		}
	}
	if strings.ContainsAny(name, ";\x00") || strings.Contains(name, "--") || strings.Contains(name, "/*") {
		return &InjectionError{Name: name, Fingerprint: "terminator"}
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(name); isSQLi {
		return &InjectionError{Name: name, Fingerprint: string(fingerprint)}
	}
	return nil
}
