package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// stringsToArgs converts []string to []any for use with database/sql.
func stringsToArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// queryStrings runs a single-column query.
func queryStrings(db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// containsPositionSQL selects rows whose flattened span contains (line,
// character), inclusive at both ends. Bind with positionArgs.
const containsPositionSQL = `(startLine < ? OR (startLine = ? AND startCharacter <= ?))
 AND (endLine > ? OR (endLine = ? AND endCharacter >= ?))`

func positionArgs(line, character uint32) []any {
	return []any{line, line, character, line, line, character}
}

type scanner interface {
	Scan(dest ...any) error
}
