package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// RecordRepository gives read access to source records, plus the write used
// by ingestion
type RecordRepository interface {
	PutRecord(ctx context.Context, record *model.Record) error
	GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error)

	// GetField returns a single field value; "" when the field is absent
	GetField(ctx context.Context, id model.RecordID, field string) (string, error)
}
