package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type chunkRepository struct {
	db *sql.DB
}

const (
	deleteChunksQuery = `DELETE FROM request_chunks WHERE record_id = $1`

	insertChunkQuery = `
INSERT INTO request_chunks (record_id, chunk_index, chunk_text, start_offset, end_offset, embedding, metadata)
VALUES ($1, $2, $3, $4, $5, $6::vector, $7)`

	countChunksQuery = `SELECT COUNT(*) FROM request_chunks WHERE record_id = $1`

	nearestQuery = `
SELECT record_id, chunk_index, chunk_text, embedding <=> $1::vector AS distance
FROM request_chunks
ORDER BY embedding <=> $1::vector
LIMIT $2`

	exactFilterCountQuery = `
SELECT COUNT(DISTINCT record_id)
FROM request_chunks
WHERE metadata->>$1 = $2`

	thresholdCountQuery = `
SELECT COUNT(DISTINCT record_id)
FROM request_chunks
WHERE embedding <=> $1::vector <= $2`
)

func (r *chunkRepository) ReplaceChunks(ctx context.Context, recordID model.RecordID, chunks []*model.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin chunk replacement", goerr.V("record_id", recordID))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteChunksQuery, string(recordID)); err != nil {
		return goerr.Wrap(err, "failed to delete chunks", goerr.V("record_id", recordID))
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertChunkQuery)
		if err != nil {
			return goerr.Wrap(err, "failed to prepare chunk insert")
		}
		defer func() { _ = stmt.Close() }()

		for _, c := range chunks {
			if c.RecordID != recordID {
				return goerr.New("chunk belongs to another record",
					goerr.V("record_id", recordID),
					goerr.V("chunk_record_id", c.RecordID))
			}
			vec, err := encodeVectorLiteral(c.Embedding)
			if err != nil {
				return goerr.Wrap(err, "invalid chunk embedding", goerr.V("chunk_index", c.Index))
			}
			meta := c.Metadata
			if meta == nil {
				meta = map[string]string{}
			}
			metaBytes, err := json.Marshal(meta)
			if err != nil {
				return goerr.Wrap(err, "failed to encode chunk metadata", goerr.V("chunk_index", c.Index))
			}
			if _, err := stmt.ExecContext(ctx, string(recordID), c.Index, c.Text, c.StartOffset, c.EndOffset, vec, metaBytes); err != nil {
				return goerr.Wrap(err, "failed to insert chunk",
					goerr.V("record_id", recordID),
					goerr.V("chunk_index", c.Index))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit chunk replacement", goerr.V("record_id", recordID))
	}
	return nil
}

func (r *chunkRepository) CountChunks(ctx context.Context, recordID model.RecordID) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countChunksQuery, string(recordID)).Scan(&count); err != nil {
		return 0, goerr.Wrap(err, "failed to count chunks", goerr.V("record_id", recordID))
	}
	return count, nil
}

func (r *chunkRepository) Nearest(ctx context.Context, vector []float32, limit int) ([]*model.ChunkHit, error) {
	if limit <= 0 {
		return []*model.ChunkHit{}, nil
	}
	vec, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, nearestQuery, vec, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query nearest chunks")
	}
	defer func() { _ = rows.Close() }()

	var hits []*model.ChunkHit
	for rows.Next() {
		var (
			hit      model.ChunkHit
			recordID string
		)
		if err := rows.Scan(&recordID, &hit.Index, &hit.Text, &hit.Distance); err != nil {
			return nil, goerr.Wrap(err, "failed to scan nearest chunk")
		}
		hit.RecordID = model.RecordID(recordID)
		hits = append(hits, &hit)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate nearest chunks")
	}
	return hits, nil
}

func (r *chunkRepository) ExactFilterCount(ctx context.Context, filter model.FieldFilter) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, exactFilterCountQuery, filter.Field, filter.Value).Scan(&count); err != nil {
		return 0, goerr.Wrap(err, "failed to count filtered records",
			goerr.V("field", filter.Field),
			goerr.V("value", filter.Value))
	}
	return count, nil
}

func (r *chunkRepository) ThresholdCount(ctx context.Context, vector []float32, threshold float64) (int, error) {
	vec, err := encodeVectorLiteral(vector)
	if err != nil {
		return 0, err
	}

	maxDistance := 1 - threshold
	var count int
	if err := r.db.QueryRowContext(ctx, thresholdCountQuery, vec, maxDistance).Scan(&count); err != nil {
		return 0, goerr.Wrap(err, "failed to count records above threshold", goerr.V("threshold", threshold))
	}
	return count, nil
}
