package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// propProbablyUpToDate is "true" once the walker found an empty queue and
// no synchronous change happened since.
const propProbablyUpToDate = "probably_uptodate"

func getProperty(ctx context.Context, q querier, key string) (string, bool, error) {
	var value sql.NullString

	err := q.QueryRowContext(ctx, "SELECT value FROM index_properties WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("get property %s: %w", key, err)
	}

	return value.String, value.Valid, nil
}

func setProperty(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO index_properties (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set property %s: %w", key, err)
	}

	return nil
}
