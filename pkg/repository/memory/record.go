package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type recordRepository struct {
	mu      sync.RWMutex
	records map[model.RecordID]*model.Record
}

func newRecordRepository() *recordRepository {
	return &recordRepository{
		records: make(map[model.RecordID]*model.Record),
	}
}

func (r *recordRepository) PutRecord(ctx context.Context, record *model.Record) error {
	if record == nil || record.ID == "" {
		return goerr.New("record ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.ID] = record.Clone()
	return nil
}

func (r *recordRepository) GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("record_id", id), goerr.T(model.TagNotFound))
	}
	return record.Clone(), nil
}

func (r *recordRepository) GetField(ctx context.Context, id model.RecordID, field string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return "", goerr.Wrap(ErrNotFound, "record not found", goerr.V("record_id", id), goerr.T(model.TagNotFound))
	}
	return record.Field(field), nil
}
