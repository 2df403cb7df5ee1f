package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// StageKeys creates a transaction-scoped temp table with a single "key" column
// and COPYs the distinct keys into it. The table is dropped on commit. Callers
// anti-join against it instead of binding very large arrays.
func StageKeys(ctx context.Context, tx pgx.Tx, table string, keys []string) (int64, error) {
	if table == "" {
		return 0, eris.New("db: stage keys: no table specified")
	}

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (key TEXT PRIMARY KEY) ON COMMIT DROP",
		pgx.Identifier{table}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: stage keys: create %s", table)
	}

	rows := distinctRows(keys)
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, []string{"key"}, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: stage keys: COPY into %s", table)
	}
	return n, nil
}

func distinctRows(keys []string) [][]any {
	seen := make(map[string]struct{}, len(keys))
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, []any{k})
	}
	return rows
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
