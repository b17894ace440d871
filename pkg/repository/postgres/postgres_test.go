package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/postgres"
)

func newMock(t *testing.T) (*postgres.Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return postgres.NewWithDB(db), mock
}

func TestEncodeVectorLiteral(t *testing.T) {
	lit, err := postgres.EncodeVectorLiteral([]float32{0.5, -1, 0.25})
	gt.NoError(t, err).Required()
	gt.Value(t, lit).Equal("[0.5,-1,0.25]")

	_, err = postgres.EncodeVectorLiteral(nil)
	gt.Error(t, err)
}

func TestReplaceChunks(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM request_chunks WHERE record_id = $1`)).
		WithArgs("R-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO request_chunks`))
	prep.ExpectExec().
		WithArgs("R-1", 0, "Project: Harbor", 0, 15, "[1,0]", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("R-1", 1, "Harbor | Status", 10, 24, "[0,1]", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	chunks := []*model.Chunk{
		{RecordID: "R-1", Index: 0, Text: "Project: Harbor", StartOffset: 0, EndOffset: 15, Embedding: []float32{1, 0}},
		{RecordID: "R-1", Index: 1, Text: "Harbor | Status", StartOffset: 10, EndOffset: 24, Embedding: []float32{0, 1},
			Metadata: map[string]string{"request_type": "4"}},
	}
	gt.NoError(t, repo.Chunk().ReplaceChunks(context.Background(), "R-1", chunks))
}

func TestReplaceChunksRollsBackOnInsertFailure(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM request_chunks WHERE record_id = $1`)).
		WithArgs("R-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO request_chunks`)).
		ExpectExec().
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	chunks := []*model.Chunk{{RecordID: "R-2", Index: 0, Text: "x", EndOffset: 1, Embedding: []float32{1}}}
	err := repo.Chunk().ReplaceChunks(context.Background(), "R-2", chunks)
	gt.Error(t, err)
}

func TestNearest(t *testing.T) {
	repo, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"record_id", "chunk_index", "chunk_text", "distance"}).
		AddRow("R-1", 0, "Contact: Jane Doe", 0.1).
		AddRow("R-2", 2, "Remarks: ask Jane Doe", 0.25)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY embedding <=> $1::vector`)).
		WithArgs("[1,0]", 6).
		WillReturnRows(rows)

	hits, err := repo.Chunk().Nearest(context.Background(), []float32{1, 0}, 6)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(2).Required()
	gt.Value(t, hits[0].RecordID).Equal(model.RecordID("R-1"))
	gt.Value(t, hits[1].Index).Equal(2)
	gt.Value(t, hits[1].Distance).Equal(0.25)
}

func TestExactFilterCount(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT record_id)
FROM request_chunks
WHERE metadata->>$1 = $2`)).
		WithArgs("request_type", "4").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(37))

	count, err := repo.Chunk().ExactFilterCount(context.Background(), model.FieldFilter{Field: "request_type", Value: "4"})
	gt.NoError(t, err).Required()
	gt.Value(t, count).Equal(37)
}

func TestThresholdCountUsesDistanceBound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE embedding <=> $1::vector <= $2`)).
		WithArgs("[1,0]", 0.5).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.Chunk().ThresholdCount(context.Background(), []float32{1, 0}, 0.5)
	gt.NoError(t, err).Required()
	gt.Value(t, count).Equal(12)
}

func TestGetRecord(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT fields FROM requests WHERE id = $1`)).
			WithArgs("R-1").
			WillReturnRows(sqlmock.NewRows([]string{"fields"}).AddRow([]byte(`{"project_name":"Harbor"}`)))

		rec, err := repo.Record().GetRecord(context.Background(), "R-1")
		gt.NoError(t, err).Required()
		gt.Value(t, rec.Field("project_name")).Equal("Harbor")
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT fields FROM requests WHERE id = $1`)).
			WithArgs("R-404").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Record().GetRecord(context.Background(), "R-404")
		gt.Error(t, err).Is(postgres.ErrNotFound)
	})
}

func TestPutRecord(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO requests (id, fields, updated_at)`)).
		WithArgs("R-1", []byte(`{"status":"2"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record().PutRecord(context.Background(), &model.Record{ID: "R-1", Fields: map[string]string{"status": "2"}})
	gt.NoError(t, err)
}

func TestMigrate(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	for range postgres.Schema(768) {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	gt.NoError(t, repo.Migrate(context.Background(), 768))
}
