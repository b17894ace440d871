package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recordDoc struct {
	ID     string            `firestore:"ID"`
	Fields map[string]string `firestore:"Fields"`
}

type recordRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newRecordRepository(client *firestore.Client) *recordRepository {
	return &recordRepository{client: client}
}

func (r *recordRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + RecordsCollection)
}

func (r *recordRepository) PutRecord(ctx context.Context, record *model.Record) error {
	if record == nil || record.ID == "" {
		return goerr.New("record ID is required")
	}

	doc := &recordDoc{ID: string(record.ID), Fields: record.Fields}
	if _, err := r.collection().Doc(string(record.ID)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.V("record_id", record.ID))
	}
	return nil
}

func (r *recordRepository) GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("record_id", id), goerr.T(model.TagNotFound))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("record_id", id))
	}

	var d recordDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("record_id", id))
	}

	fields := d.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return &model.Record{ID: model.RecordID(d.ID), Fields: fields}, nil
}

func (r *recordRepository) GetField(ctx context.Context, id model.RecordID, field string) (string, error) {
	record, err := r.GetRecord(ctx, id)
	if err != nil {
		return "", err
	}
	return record.Field(field), nil
}
