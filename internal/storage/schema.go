package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates the faq table. Rows are served in id order, which is
// the entry order the matcher sees.
func InitSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS faq (
	id       INTEGER PRIMARY KEY,
	question TEXT NOT NULL,
	answer   TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create faq table: %w", err)
	}
	return nil
}
