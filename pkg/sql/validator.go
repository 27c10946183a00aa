// Package sql provides checks applied to user-supplied SQL before it reaches a warehouse.
package sql

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrEmptyStatement indicates the query has no SQL after comments are removed.
	ErrEmptyStatement = errors.New("empty SQL statement")
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrNotReadOnly indicates the statement is not a SELECT or WITH query.
	ErrNotReadOnly = errors.New("only SELECT and WITH queries are permitted")
)

// NormalizeStatement checks that sqlQuery is a single read-only statement and
// returns it with surrounding whitespace and a trailing semicolon removed.
//
// Semicolons inside string literals, quoted identifiers and comments are ignored.
func NormalizeStatement(sqlQuery string) (string, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sqlQuery))

	code := stripCommentsAndLiterals(normalized)
	if strings.TrimSpace(code) == "" {
		return "", ErrEmptyStatement
	}
	if strings.ContainsRune(code, ';') {
		return "", ErrMultipleStatements
	}

	switch leadingKeyword(code) {
	case "select", "with":
		return normalized, nil
	default:
		return "", ErrNotReadOnly
	}
}

// stripCommentsAndLiterals blanks out comments, string literals and quoted
// identifiers so that only SQL structure remains.
func stripCommentsAndLiterals(sqlQuery string) string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBacktick
		stateLineComment
		stateBlockComment
	)

	var b strings.Builder
	state := stateNormal
	runes := []rune(sqlQuery)

	for i := 0; i < len(runes); i++ {
		char := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case char == '\'':
				state = stateSingleQuote
			case char == '"':
				state = stateDoubleQuote
			case char == '`':
				state = stateBacktick
			case char == '-' && next == '-':
				state = stateLineComment
				i++
			case char == '/' && next == '*':
				state = stateBlockComment
				i++
			default:
				b.WriteRune(char)
				continue
			}
			b.WriteRune(' ')
		case stateSingleQuote:
			// '' is an escaped quote and keeps the literal open
			if char == '\\' {
				i++
			} else if char == '\'' {
				if next == '\'' {
					i++
				} else {
					state = stateNormal
				}
			}
		case stateDoubleQuote:
			if char == '"' {
				state = stateNormal
			}
		case stateBacktick:
			if char == '`' {
				state = stateNormal
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
				b.WriteRune('\n')
			}
		case stateBlockComment:
			if char == '*' && next == '/' {
				state = stateNormal
				i++
				b.WriteRune(' ')
			}
		}
	}

	return b.String()
}

// leadingKeyword returns the first word of the statement in lower case,
// skipping opening parentheses.
func leadingKeyword(code string) string {
	code = strings.TrimLeftFunc(code, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	end := strings.IndexFunc(code, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		end = len(code)
	}
	return strings.ToLower(code[:end])
}

// stripTrailingSemicolon removes one trailing semicolon and the whitespace around it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}
