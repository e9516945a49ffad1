package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	// Name identifies the dialect ("sqlite", "postgres").
	Name string
	// Driver is the database/sql driver name registered by the driver package.
	Driver string
	// JSONType is the column type used for JSON documents.
	JSONType string
	// Placeholder renders the n-th (1 based) bind parameter.
	Placeholder func(n int) string
}

// SQLite uses the pure Go modernc.org/sqlite driver.
var SQLite = Dialect{
	Name:        "sqlite",
	Driver:      "sqlite",
	JSONType:    "TEXT",
	Placeholder: func(int) string { return "?" },
}

// Postgres uses the pgx stdlib driver.
var Postgres = Dialect{
	Name:        "postgres",
	Driver:      "pgx",
	JSONType:    "JSONB",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

// DialectFor resolves a dialect by name. "sqlite3" and "postgresql" are
// accepted as aliases.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("sqlstore: unsupported dialect %q", name)
}

func (d Dialect) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func (d Dialect) jsonParam(n int) string {
	if d.Name == Postgres.Name {
		return d.Placeholder(n) + "::jsonb"
	}
	return d.Placeholder(n)
}
