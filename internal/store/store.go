// Package store is the persistent side of the expansion cache: nodes,
// edges and recorded expansions in Postgres, shared by every session
// and by the prefetch worker.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/skein-labs/skein/backend/internal/util"
	"github.com/skein-labs/skein/backend/pkg/cache"
	"github.com/skein-labs/skein/backend/pkg/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const defaultJaccardThreshold = 0.5

// Store reads and writes the cache schema. It implements the same
// operations the HTTP cache surface exposes, so the worker can use it
// directly without going through the server.
type Store struct {
	pool             *pgxpool.Pool
	jaccardThreshold float64
}

// New creates a Store. The fuzzy-match threshold comes from
// CACHE_JACCARD_THRESHOLD when set.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:             pool,
		jaccardThreshold: util.GetEnvNumeric("CACHE_JACCARD_THRESHOLD", defaultJaccardThreshold),
	}
}

// UpsertNode registers a node keyed by (title, type, external_ref) and
// returns its canonical id. Optional fields only ever fill in blanks,
// an upsert never erases what an earlier write knew.
func (s *Store) UpsertNode(ctx context.Context, node cache.Node) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO nodes (title, type, description, year, external_ref, image_url, summary)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		ON CONFLICT (title, type, external_ref) DO UPDATE SET
			description = COALESCE(nodes.description, EXCLUDED.description),
			year        = COALESCE(nodes.year, EXCLUDED.year),
			image_url   = COALESCE(nodes.image_url, EXCLUDED.image_url),
			summary     = COALESCE(nodes.summary, EXCLUDED.summary)
		RETURNING id`,
		node.Title, node.Type.String(), node.Description, node.Year, node.ExternalRef, node.ImageURL, node.Summary,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert node %q: %w", node.Title, err)
	}
	return id, nil
}

// LookupExpansion finds a cached expansion for sourceID under the
// given context: exact fingerprint first, then the most similar stored
// context at or above the Jaccard threshold.
func (s *Store) LookupExpansion(ctx context.Context, sourceID int64, contextIDs []int64) (*cache.LookupResult, error) {
	fingerprint := common.ContextFingerprint(contextIDs)

	var targetIDs []int64
	err := s.pool.QueryRow(ctx,
		`SELECT target_ids FROM expansions WHERE source_id = $1 AND fingerprint = $2`,
		sourceID, fingerprint,
	).Scan(&targetIDs)
	if err == nil {
		nodes, err := s.loadTargets(ctx, sourceID, targetIDs)
		if err != nil {
			return nil, err
		}
		return &cache.LookupResult{Hit: true, Exact: true, Nodes: nodes}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup expansion of %d: %w", sourceID, err)
	}

	rows, err := s.expansionsOf(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	match, ok := BestFuzzyMatch(rows, contextIDs, s.jaccardThreshold)
	if !ok {
		return &cache.LookupResult{}, nil
	}
	nodes, err := s.loadTargets(ctx, sourceID, match.TargetIDs)
	if err != nil {
		return nil, err
	}
	return &cache.LookupResult{Hit: true, Nodes: nodes}, nil
}

// WriteExpansion stores one expansion atomically: node upserts, edges
// from the source, and the expansion record. Returns canonical ids
// parallel to the input nodes.
func (s *Store) WriteExpansion(ctx context.Context, sourceID int64, contextIDs []int64, nodes []cache.Node) ([]int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("write expansion of %d: %w", sourceID, err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, len(nodes))
	for i, node := range nodes {
		err := tx.QueryRow(ctx, `
			INSERT INTO nodes (title, type, description, year, external_ref, image_url, summary)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''))
			ON CONFLICT (title, type, external_ref) DO UPDATE SET
				description = COALESCE(nodes.description, EXCLUDED.description),
				year        = COALESCE(nodes.year, EXCLUDED.year),
				image_url   = COALESCE(nodes.image_url, EXCLUDED.image_url),
				summary     = COALESCE(nodes.summary, EXCLUDED.summary)
			RETURNING id`,
			node.Title, node.Type.String(), node.Description, node.Year, node.ExternalRef, node.ImageURL, node.Summary,
		).Scan(&ids[i])
		if err != nil {
			return nil, fmt.Errorf("write expansion of %d: upsert %q: %w", sourceID, node.Title, err)
		}

		// A candidate can resolve to the source itself; no self-edges.
		if ids[i] == sourceID {
			continue
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO edges (source_id, target_id, label)
			VALUES (LEAST($1::bigint, $2::bigint), GREATEST($1::bigint, $2::bigint), NULLIF($3, ''))
			ON CONFLICT (source_id, target_id) DO NOTHING`,
			sourceID, ids[i], node.Label,
		)
		if err != nil {
			return nil, fmt.Errorf("write expansion of %d: edge to %d: %w", sourceID, ids[i], err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO expansions (source_id, fingerprint, context_ids, target_ids)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id, fingerprint) DO UPDATE SET
			context_ids = EXCLUDED.context_ids,
			target_ids  = EXCLUDED.target_ids`,
		sourceID, common.ContextFingerprint(contextIDs), contextIDs, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("write expansion of %d: record: %w", sourceID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("write expansion of %d: commit: %w", sourceID, err)
	}
	return ids, nil
}

// SetEmbedding attaches a title embedding to a node for similarity
// search.
func (s *Store) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE nodes SET embedding = $2 WHERE id = $1`,
		id, pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("set embedding for %d: %w", id, err)
	}
	return nil
}

// SimilarByEmbedding returns the nodes closest to the given embedding
// by cosine distance.
func (s *Store) SimilarByEmbedding(ctx context.Context, embedding []float32, limit int) ([]cache.Node, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, type, COALESCE(description, ''), year, external_ref,
		       COALESCE(image_url, ''), COALESCE(summary, '')
		FROM nodes
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// SimilarByTitle is the fallback suggestion query when no embedder is
// configured: case-insensitive prefix match.
func (s *Store) SimilarByTitle(ctx context.Context, title string, limit int) ([]cache.Node, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, type, COALESCE(description, ''), year, external_ref,
		       COALESCE(image_url, ''), COALESCE(summary, '')
		FROM nodes
		WHERE title ILIKE $1 || '%'
		ORDER BY title
		LIMIT $2`,
		title, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("title search: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func (s *Store) expansionsOf(ctx context.Context, sourceID int64) ([]ExpansionRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, context_ids, target_ids FROM expansions WHERE source_id = $1 ORDER BY id`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("expansions of %d: %w", sourceID, err)
	}
	defer rows.Close()

	var out []ExpansionRow
	for rows.Next() {
		var row ExpansionRow
		if err := rows.Scan(&row.ID, &row.ContextIDs, &row.TargetIDs); err != nil {
			return nil, fmt.Errorf("expansions of %d: %w", sourceID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// loadTargets fetches the target nodes of an expansion along with the
// label of their edge to the source.
func (s *Store) loadTargets(ctx context.Context, sourceID int64, targetIDs []int64) ([]cache.Node, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT n.id, n.title, n.type, COALESCE(n.description, ''), n.year, n.external_ref,
		       COALESCE(n.image_url, ''), COALESCE(n.summary, ''), COALESCE(e.label, '')
		FROM nodes n
		LEFT JOIN edges e
		  ON e.source_id = LEAST(n.id, $1::bigint) AND e.target_id = GREATEST(n.id, $1::bigint)
		WHERE n.id = ANY($2)`,
		sourceID, targetIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("load targets of %d: %w", sourceID, err)
	}
	defer rows.Close()

	byID := make(map[int64]cache.Node, len(targetIDs))
	for rows.Next() {
		var (
			n        cache.Node
			nodeType string
		)
		if err := rows.Scan(&n.ID, &n.Title, &nodeType, &n.Description, &n.Year, &n.ExternalRef, &n.ImageURL, &n.Summary, &n.Label); err != nil {
			return nil, fmt.Errorf("load targets of %d: %w", sourceID, err)
		}
		n.Type = common.ParseNodeType(nodeType)
		byID[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the recorded expansion order.
	out := make([]cache.Node, 0, len(targetIDs))
	for _, id := range targetIDs {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func scanNodes(rows pgx.Rows) ([]cache.Node, error) {
	var out []cache.Node
	for rows.Next() {
		var (
			n        cache.Node
			nodeType string
		)
		if err := rows.Scan(&n.ID, &n.Title, &nodeType, &n.Description, &n.Year, &n.ExternalRef, &n.ImageURL, &n.Summary); err != nil {
			return nil, err
		}
		n.Type = common.ParseNodeType(nodeType)
		out = append(out, n)
	}
	return out, rows.Err()
}
