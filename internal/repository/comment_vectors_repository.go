package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/quillai/quill/internal/models"
)

// CommentVectorsRepository stores comment embeddings in comment_vectors, partitioned by namespace.
// Uses halfvec storage (2 bytes per dimension); pgvector-go converts float32 to float16 when encoding.
type CommentVectorsRepository struct {
	db *pgxpool.Pool
}

// NewCommentVectorsRepository creates a new comment vectors repository.
func NewCommentVectorsRepository(db *pgxpool.Pool) *CommentVectorsRepository {
	return &CommentVectorsRepository{db: db}
}

// Upsert writes vectors into namespace in one batch. Existing (namespace, id) pairs are overwritten.
func (r *CommentVectorsRepository) Upsert(ctx context.Context, namespace string, vectors []models.CommentVector) error {
	if len(vectors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, v := range vectors {
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return fmt.Errorf("encode vector metadata: %w", err)
		}

		batch.Queue(`
			INSERT INTO comment_vectors (namespace, id, embedding, metadata)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (namespace, id)
			DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`,
			namespace, v.ID, pgvector.NewHalfVector(v.Vector), meta,
		)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("comment vectors upsert: %w", err)
	}

	return nil
}

// Query returns the topK nearest vectors in namespace by cosine distance; score = 1 - distance.
func (r *CommentVectorsRepository) Query(
	ctx context.Context, namespace string, vector []float32, topK int,
) ([]models.VectorMatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, (1 - (embedding <=> $1)) AS score, metadata
		FROM comment_vectors
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewHalfVector(vector), namespace, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("comment vectors query: %w", err)
	}
	defer rows.Close()

	matches := []models.VectorMatch{}

	for rows.Next() {
		var (
			m    models.VectorMatch
			meta []byte
		)

		if err := rows.Scan(&m.ID, &m.Score, &meta); err != nil {
			return nil, fmt.Errorf("scan comment vector match: %w", err)
		}

		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode vector metadata: %w", err)
		}

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comment vector matches: %w", err)
	}

	return matches, nil
}

// Count returns the number of vectors in namespace.
func (r *CommentVectorsRepository) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM comment_vectors WHERE namespace = $1`, namespace).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comment vectors: %w", err)
	}

	return n, nil
}

// DeleteOrphans removes vectors written before cutoff whose namespace has no analysis_history row.
// These are left behind when indexing succeeded but the job failed afterwards.
func (r *CommentVectorsRepository) DeleteOrphans(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM comment_vectors cv
		WHERE cv.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM analysis_history h WHERE h.id::text = cv.namespace)`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete orphan comment vectors: %w", err)
	}

	return tag.RowsAffected(), nil
}
