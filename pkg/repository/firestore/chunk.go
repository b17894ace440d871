package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"google.golang.org/api/iterator"
)

// findNearestLimit is the maximum result size Firestore accepts for a vector query
const findNearestLimit = 1000

const distanceField = "vector_distance"

// chunkDoc is the Firestore document representation of model.Chunk.
// Embedding is stored as firestore.Vector32 so that FindNearest vector search works.
type chunkDoc struct {
	RecordID    string             `firestore:"RecordID"`
	Index       int                `firestore:"Index"`
	Text        string             `firestore:"Text"`
	StartOffset int                `firestore:"StartOffset"`
	EndOffset   int                `firestore:"EndOffset"`
	Embedding   firestore.Vector32 `firestore:"Embedding,omitempty"`
	Metadata    map[string]string  `firestore:"Metadata,omitempty"`
}

func toChunkDoc(c *model.Chunk) *chunkDoc {
	doc := &chunkDoc{
		RecordID:    string(c.RecordID),
		Index:       c.Index,
		Text:        c.Text,
		StartOffset: c.StartOffset,
		EndOffset:   c.EndOffset,
		Metadata:    c.Metadata,
	}
	if len(c.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(c.Embedding)
	}
	return doc
}

type chunkRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newChunkRepository(client *firestore.Client) *chunkRepository {
	return &chunkRepository{client: client}
}

func (r *chunkRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + ChunksCollection)
}

func chunkDocID(recordID model.RecordID, index int) string {
	return fmt.Sprintf("%s_%04d", recordID, index)
}

func (r *chunkRepository) ReplaceChunks(ctx context.Context, recordID model.RecordID, chunks []*model.Chunk) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(r.collection().Where("RecordID", "==", string(recordID))).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to list existing chunks")
		}

		for _, doc := range existing {
			if err := tx.Delete(doc.Ref); err != nil {
				return goerr.Wrap(err, "failed to delete chunk", goerr.V("doc_id", doc.Ref.ID))
			}
		}

		for _, c := range chunks {
			if c.RecordID != recordID {
				return goerr.New("chunk belongs to another record",
					goerr.V("record_id", recordID),
					goerr.V("chunk_record_id", c.RecordID))
			}
			docRef := r.collection().Doc(chunkDocID(recordID, c.Index))
			if err := tx.Set(docRef, toChunkDoc(c)); err != nil {
				return goerr.Wrap(err, "failed to set chunk", goerr.V("chunk_index", c.Index))
			}
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to replace chunks", goerr.V("record_id", recordID))
	}

	return nil
}

func (r *chunkRepository) CountChunks(ctx context.Context, recordID model.RecordID) (int, error) {
	q := r.collection().Where("RecordID", "==", string(recordID))
	return r.count(ctx, q)
}

func (r *chunkRepository) Nearest(ctx context.Context, vector []float32, limit int) ([]*model.ChunkHit, error) {
	if limit <= 0 {
		return []*model.ChunkHit{}, nil
	}
	if limit > findNearestLimit {
		limit = findNearestLimit
	}

	vq := r.collection().FindNearest("Embedding", firestore.Vector32(vector), limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField})

	return r.collectHits(ctx, vq)
}

func (r *chunkRepository) ExactFilterCount(ctx context.Context, filter model.FieldFilter) (int, error) {
	// Every record owns exactly one chunk with Index 0, so counting those
	// counts distinct records.
	q := r.collection().
		Where("Metadata."+filter.Field, "==", filter.Value).
		Where("Index", "==", 0)

	count, err := r.count(ctx, q)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count filtered records",
			goerr.V("field", filter.Field),
			goerr.V("value", filter.Value))
	}
	return count, nil
}

// ThresholdCount counts distinct records among at most findNearestLimit
// chunks within the cosine distance 1-threshold; the result is approximate.
func (r *chunkRepository) ThresholdCount(ctx context.Context, vector []float32, threshold float64) (int, error) {
	maxDistance := 1 - threshold
	if maxDistance < 0 {
		return 0, nil
	}

	vq := r.collection().FindNearest("Embedding", firestore.Vector32(vector), findNearestLimit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceThreshold:   &maxDistance,
			DistanceResultField: distanceField,
		})

	hits, err := r.collectHits(ctx, vq)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run threshold query", goerr.V("threshold", threshold))
	}

	seen := make(map[model.RecordID]struct{}, len(hits))
	for _, h := range hits {
		seen[h.RecordID] = struct{}{}
	}
	return len(seen), nil
}

func (r *chunkRepository) collectHits(ctx context.Context, vq firestore.VectorQuery) ([]*model.ChunkHit, error) {
	iter := vq.Documents(ctx)
	defer iter.Stop()

	var hits []*model.ChunkHit
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chunk vector search results")
		}

		var d chunkDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chunk from vector search", goerr.V("doc_id", doc.Ref.ID))
		}

		distance, err := doc.DataAt(distanceField)
		if err != nil {
			return nil, goerr.Wrap(err, "vector distance missing from result", goerr.V("doc_id", doc.Ref.ID))
		}
		dist, ok := distance.(float64)
		if !ok {
			return nil, goerr.New("unexpected vector distance type",
				goerr.V("doc_id", doc.Ref.ID),
				goerr.V("type", fmt.Sprintf("%T", distance)))
		}

		hits = append(hits, &model.ChunkHit{
			RecordID: model.RecordID(d.RecordID),
			Index:    d.Index,
			Text:     d.Text,
			Distance: dist,
		})
	}

	return hits, nil
}

func (r *chunkRepository) count(ctx context.Context, q firestore.Query) (int, error) {
	result, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run count aggregation")
	}

	v, ok := result["all"].(*firestorepb.Value)
	if !ok {
		return 0, goerr.New("unexpected count aggregation result", goerr.V("result", result))
	}
	return int(v.GetIntegerValue()), nil
}
