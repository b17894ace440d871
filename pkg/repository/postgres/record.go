package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type recordRepository struct {
	db *sql.DB
}

const (
	upsertRecordQuery = `
INSERT INTO requests (id, fields, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (id) DO UPDATE SET
  fields = EXCLUDED.fields,
  updated_at = NOW()`

	getRecordQuery = `SELECT fields FROM requests WHERE id = $1`

	getFieldQuery = `SELECT COALESCE(fields->>$2, '') FROM requests WHERE id = $1`
)

func (r *recordRepository) PutRecord(ctx context.Context, record *model.Record) error {
	if record == nil || record.ID == "" {
		return goerr.New("record ID is required")
	}

	fields := record.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return goerr.Wrap(err, "failed to encode record fields", goerr.V("record_id", record.ID))
	}

	if _, err := r.db.ExecContext(ctx, upsertRecordQuery, string(record.ID), data); err != nil {
		return goerr.Wrap(err, "failed to upsert record", goerr.V("record_id", record.ID))
	}
	return nil
}

func (r *recordRepository) GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error) {
	var data []byte
	if err := r.db.QueryRowContext(ctx, getRecordQuery, string(id)).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("record_id", id), goerr.T(model.TagNotFound))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("record_id", id))
	}

	fields := map[string]string{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, goerr.Wrap(err, "failed to decode record fields", goerr.V("record_id", id))
	}
	return &model.Record{ID: id, Fields: fields}, nil
}

func (r *recordRepository) GetField(ctx context.Context, id model.RecordID, field string) (string, error) {
	var value string
	if err := r.db.QueryRowContext(ctx, getFieldQuery, string(id), field).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", goerr.Wrap(ErrNotFound, "record not found", goerr.V("record_id", id), goerr.T(model.TagNotFound))
		}
		return "", goerr.Wrap(err, "failed to get record field",
			goerr.V("record_id", id),
			goerr.V("field", field))
	}
	return value, nil
}
