package output

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for copy runs.
//
// Implementations must be safe for concurrent use. Each Write* method
// emits a complete record as a single line of JSON followed by a newline.
type Writer interface {
	// WriteCopy emits a copied-artifact record.
	WriteCopy(ctx context.Context, rec *CopyRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, rec *ErrorRecord) error

	// WriteSummary emits the final summary record.
	WriteSummary(ctx context.Context, rec *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// ErrWriterClosed is returned for writes after Close.
var ErrWriterClosed = errors.New("output writer is closed")

// Discard is a Writer that drops all records, for callers that only want
// console output.
var Discard Writer = discard{}

type discard struct{}

func (discard) WriteCopy(context.Context, *CopyRecord) error       { return nil }
func (discard) WriteError(context.Context, *ErrorRecord) error     { return nil }
func (discard) WriteSummary(context.Context, *SummaryRecord) error { return nil }
func (discard) Close() error                                       { return nil }

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized with a
// mutex so lines never interleave.
type JSONLWriter struct {
	w     io.Writer
	runID string
	mu    sync.Mutex

	closed bool
}

// NewJSONLWriter creates a new JSONL writer with the given run
// correlation ID.
func NewJSONLWriter(w io.Writer, runID string) *JSONLWriter {
	return &JSONLWriter{w: w, runID: runID}
}

// WriteCopy emits a copied-artifact record.
func (jw *JSONLWriter) WriteCopy(ctx context.Context, rec *CopyRecord) error {
	return jw.writeRecord(ctx, TypeCopy, rec)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, rec *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, rec)
}

// WriteSummary emits the final summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, rec *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, rec)
}

// Close marks the writer closed. The underlying io.Writer is not closed;
// the caller owns it.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, typ string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	line, err := json.Marshal(Record{
		Type:  typ,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		Data:  payload,
	})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.closed {
		return ErrWriterClosed
	}
	_, err = jw.w.Write(line)
	return err
}
