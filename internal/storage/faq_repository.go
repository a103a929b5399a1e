package storage

import (
	"context"
	"fmt"
)

// FAQ is one row of the faq table.
type FAQ struct {
	ID       int64
	Question string
	Answer   string
}

// ListFAQ returns every row ordered by id.
func (db *DB) ListFAQ(ctx context.Context) ([]FAQ, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, question, answer FROM faq ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query faq: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FAQ
	for rows.Next() {
		var f FAQ
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer); err != nil {
			return nil, fmt.Errorf("failed to scan faq row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate faq rows: %w", err)
	}
	return out, nil
}

// ReplaceFAQ replaces the whole table in one transaction. Row ids are
// assigned from 1 in slice order.
func (db *DB) ReplaceFAQ(ctx context.Context, faqs []FAQ) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM faq`); err != nil {
		return fmt.Errorf("failed to clear faq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO faq (id, question, answer) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, f := range faqs {
		if _, err := stmt.ExecContext(ctx, int64(i+1), f.Question, f.Answer); err != nil {
			return fmt.Errorf("failed to insert faq %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// CountFAQ returns the number of rows.
func (db *DB) CountFAQ(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM faq`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count faq: %w", err)
	}
	return n, nil
}
