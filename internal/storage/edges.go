package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/examina/internal/core/model"
)

// SaveEdges upserts decision edges keyed by their unordered endpoints.
func (db *DB) SaveEdges(ctx context.Context, edges []model.DecisionEdge) error {
	if len(edges) == 0 {
		return nil
	}
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO decision_edges (source_id, target_id, is_match, confidence, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_id, target_id) DO UPDATE SET
			is_match = excluded.is_match,
			confidence = excluded.confidence,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		src, dst := e.SourceID, e.TargetID
		if src == dst {
			continue
		}
		if src > dst {
			src, dst = dst, src
		}
		if _, err := stmt.ExecContext(ctx, src, dst, e.IsMatch, e.Confidence, e.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to upsert edge %s-%s: %w", src, dst, err)
		}
	}
	return tx.Commit()
}

func (db *DB) LoadEdges(ctx context.Context) ([]model.DecisionEdge, error) {
	conn, release, err := db.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := conn.QueryContext(ctx, `
		SELECT source_id, target_id, is_match, confidence, created_at
		FROM decision_edges
		ORDER BY source_id, target_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var out []model.DecisionEdge
	for rows.Next() {
		var (
			e         model.DecisionEdge
			createdAt string
		)
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.IsMatch, &e.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
