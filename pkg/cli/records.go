package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
)

const maxRecordLineBytes = 16 << 20

// recordReader decodes JSON-lines records. Each line is a flat object; the
// value of idField becomes the record ID and every other value is rendered
// as a string field.
type recordReader struct {
	scanner *bufio.Scanner
	idField string
	line    int
	skipped int
}

func newRecordReader(r io.Reader, idField string) *recordReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLineBytes)
	return &recordReader{scanner: scanner, idField: idField}
}

// Next returns the next record, or io.EOF at the end of input. Lines without
// an ID are skipped and counted.
func (rr *recordReader) Next(ctx context.Context) (*model.Record, error) {
	for rr.scanner.Scan() {
		rr.line++
		line := bytes.TrimSpace(rr.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		record, err := rr.decode(line)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode record", goerr.V("line", rr.line))
		}
		if record.ID == "" {
			rr.skipped++
			logging.From(ctx).Warn("record without ID skipped", "line", rr.line, "id_field", rr.idField)
			continue
		}
		return record, nil
	}
	if err := rr.scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read records", goerr.V("line", rr.line))
	}
	return nil, io.EOF
}

// Skipped returns the number of lines skipped for a missing ID
func (rr *recordReader) Skipped() int {
	return rr.skipped
}

func (rr *recordReader) decode(line []byte) (*model.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	record := &model.Record{Fields: make(map[string]string, len(raw))}
	for k, v := range raw {
		value, err := renderJSONValue(v)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to render field", goerr.V("field", k))
		}
		if k == rr.idField {
			record.ID = model.RecordID(strings.TrimSpace(value))
		}
		record.Fields[k] = value
	}
	return record, nil
}

func renderJSONValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// openInput opens path for reading; "-" is standard input
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open input", goerr.V("path", path))
	}
	return f, nil
}

// ingestFile streams records from path into the ingestion use case in
// batches
func ingestFile(ctx context.Context, pl *pipeline, path, idField string, batchSize int) (*ingestSummary, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer safe.Close(ctx, "record input", in)

	if batchSize <= 0 {
		batchSize = 100
	}

	reader := newRecordReader(in, idField)
	summary := &ingestSummary{}
	batch := make([]*model.Record, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		report, err := pl.uc.Ingest.IngestBatch(ctx, batch)
		if report != nil {
			summary.add(report.Records, report.Chunks, report.Empty, len(report.Failures))
		}
		batch = batch[:0]
		return err
	}

	for {
		record, err := reader.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, err
		}
		batch = append(batch, record)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := flush(); err != nil {
		return summary, err
	}

	summary.Skipped = reader.Skipped()
	return summary, nil
}

type ingestSummary struct {
	Records  int
	Chunks   int
	Empty    int
	Failures int
	Skipped  int
}

func (s *ingestSummary) add(records, chunks, empty, failures int) {
	s.Records += records
	s.Chunks += chunks
	s.Empty += empty
	s.Failures += failures
}
