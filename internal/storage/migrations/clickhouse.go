package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	chstore "aptos-copytrade/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if needed and applies all embedded
// ClickHouse migrations. Statements must be idempotent (CREATE ... IF NOT EXISTS).
// Returns a connection to the target database for reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string, log logrus.FieldLogger) (*chstore.Conn, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	files, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		adminConn.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	for _, m := range files {
		stmts, err := splitStatements(m.SQL)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("split migration %s: %w", m.Name, err)
		}
		// The native driver runs one statement per Exec.
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		log.WithField("migration", m.Name).Info("applied clickhouse migration")
	}

	return conn, nil
}

// splitStatements splits SQL into statements on semicolons outside single-quoted strings.
// Lines starting with -- are dropped first, so comments must not share a line with SQL.
func splitStatements(input string) ([]string, error) {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}
	sql := strings.Join(kept, "\n")

	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case ch == '\'' && inString && i+1 < len(sql) && sql[i+1] == '\'':
			current.WriteString("''")
			i++
			continue
		case ch == '\'':
			inString = !inString
		case ch == ';' && !inString:
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				stmts = append(stmts, stmt)
			}
			current.Reset()
			continue
		}
		current.WriteByte(ch)
	}
	if inString {
		return nil, fmt.Errorf("unterminated string literal")
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
