package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agenthands/examina/internal/core/model"
)

// SaveExamples appends examples. Ids already stored are skipped, so saving
// the same batch twice is harmless. Rows that break a constraint fail the
// whole batch.
func (db *DB) SaveExamples(ctx context.Context, examples []model.LabeledExample) error {
	if len(examples) == 0 {
		return nil
	}
	return db.withExamplesTx(ctx, false, examples)
}

// ReplaceExamples swaps the stored training set for examples atomically.
func (db *DB) ReplaceExamples(ctx context.Context, examples []model.LabeledExample) error {
	return db.withExamplesTx(ctx, true, examples)
}

func (db *DB) withExamplesTx(ctx context.Context, truncate bool, examples []model.LabeledExample) error {
	conn, release, err := db.acquire()
	if err != nil {
		return err
	}
	defer release()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if truncate {
		if _, err := tx.ExecContext(ctx, "DELETE FROM labeled_examples"); err != nil {
			return fmt.Errorf("failed to clear examples: %w", err)
		}
	}
	if err := insertExamples(ctx, tx, examples); err != nil {
		return err
	}
	return tx.Commit()
}

func insertExamples(ctx context.Context, tx *sql.Tx, examples []model.LabeledExample) error {
	if len(examples) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO labeled_examples (
			id, item_a, item_b,
			embedding_similarity, token_jaccard, trigram_jaccard, desc_length_ratio,
			same_category, verb_match, name_similarity,
			label, oracle_confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ex := range examples {
		f := ex.Features
		_, err := stmt.ExecContext(ctx,
			ex.ID, ex.ItemA, ex.ItemB,
			f.EmbeddingSimilarity, f.TokenJaccard, f.TrigramJaccard, f.DescLengthRatio,
			f.SameCategory, f.VerbMatch, f.NameSimilarity,
			ex.Label, ex.OracleConfidence, ex.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert example %s: %w", ex.ID, err)
		}
	}
	return nil
}

// LoadExamples returns every stored example in insertion order.
func (db *DB) LoadExamples(ctx context.Context) ([]model.LabeledExample, error) {
	conn, release, err := db.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := conn.QueryContext(ctx, `
		SELECT id, item_a, item_b,
			embedding_similarity, token_jaccard, trigram_jaccard, desc_length_ratio,
			same_category, verb_match, name_similarity,
			label, oracle_confidence, created_at
		FROM labeled_examples
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query examples: %w", err)
	}
	defer rows.Close()

	var out []model.LabeledExample
	for rows.Next() {
		var (
			ex        model.LabeledExample
			createdAt string
		)
		f := &ex.Features
		if err := rows.Scan(&ex.ID, &ex.ItemA, &ex.ItemB,
			&f.EmbeddingSimilarity, &f.TokenJaccard, &f.TrigramJaccard, &f.DescLengthRatio,
			&f.SameCategory, &f.VerbMatch, &f.NameSimilarity,
			&ex.Label, &ex.OracleConfidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan example: %w", err)
		}
		ex.CreatedAt = parseTime(createdAt)
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (db *DB) CountExamples(ctx context.Context) (int, error) {
	conn, release, err := db.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM labeled_examples").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count examples: %w", err)
	}
	return n, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
