package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/scan"
)

// FlushFunc writes rows into table. Replaceable for tests.
type FlushFunc func(ctx context.Context, table string, rows [][]any) error

// VerdictWriter batches verdict rows and flushes them when the batch is
// full, on every tick of the flush interval, and on Close.
type VerdictWriter struct {
	table         string
	batchSize     int
	flushInterval time.Duration
	flush         FlushFunc

	mu         sync.Mutex
	buf        [][]any
	closed     bool
	flushCount int64
	errorCount int64
	dropped    int64
}

var _ scan.VerdictRecorder = (*VerdictWriter)(nil)

var errWriterClosed = errors.New("clickhouse: writer is closed")

// NewVerdictWriter creates a writer over client. client may be nil when a
// flush hook is installed.
func NewVerdictWriter(client *Client, database string, batchSize int, flushInterval time.Duration) *VerdictWriter {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	w := &VerdictWriter{
		table:         tableName(database),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buf:           make([][]any, 0, batchSize),
	}
	if client != nil {
		w.flush = client.insert
	}
	return w
}

// SetFlushHook replaces the insert path.
func (w *VerdictWriter) SetFlushHook(fn FlushFunc) {
	w.mu.Lock()
	w.flush = fn
	w.mu.Unlock()
}

// RecordVerdicts buffers verdicts, flushing synchronously once the batch fills.
func (w *VerdictWriter) RecordVerdicts(ctx context.Context, verdicts []scan.Verdict) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errWriterClosed
	}
	for _, v := range verdicts {
		w.buf = append(w.buf, verdictRow(v))
	}
	full := len(w.buf) >= w.batchSize
	w.mu.Unlock()

	if full {
		return w.Flush(ctx)
	}
	return nil
}

func verdictRow(v scan.Verdict) []any {
	r := v.Result
	return []any{
		v.RunID,
		v.Token,
		v.Symbol,
		v.ModelID,
		boolToUInt8(r.Passed),
		boolToUInt8(r.Invalidated),
		r.InvalidationReason,
		r.Score,
		r.MaxPossibleScore,
		r.ScorePct(),
		uint16(r.ConfluenceCount),
		r.GateFailures,
		r.MandatoryFailed,
		v.EvaluatedAt,
	}
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Start flushes on every interval until ctx is cancelled, then flushes once more.
func (w *VerdictWriter) Start(ctx context.Context) {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	log.Info().
		Int("batch_size", w.batchSize).
		Dur("flush_interval", w.flushInterval).
		Str("table", w.table).
		Msg("clickhouse: verdict writer started")

	for {
		select {
		case <-ctx.Done():
			if err := w.Flush(context.WithoutCancel(ctx)); err != nil {
				log.Error().Err(err).Msg("clickhouse: final flush failed")
			}
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				log.Error().Err(err).Msg("clickhouse: periodic flush failed")
			}
		}
	}
}

// Flush writes every buffered row. Rows of a failed flush are dropped.
func (w *VerdictWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	rows := w.buf
	w.buf = make([][]any, 0, w.batchSize)
	flush := w.flush
	w.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	var err error
	if flush == nil {
		err = errors.New("clickhouse: no connection")
	} else {
		err = flush(ctx, w.table, rows)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.errorCount++
		w.dropped += int64(len(rows))
		return fmt.Errorf("flush %d verdicts: %w", len(rows), err)
	}
	w.flushCount++
	log.Debug().Int("rows", len(rows)).Int64("total_flushes", w.flushCount).Msg("clickhouse: verdicts flushed")
	return nil
}

// Close flushes what is buffered and rejects further writes.
func (w *VerdictWriter) Close(ctx context.Context) error {
	err := w.Flush(ctx)

	w.mu.Lock()
	w.closed = true
	log.Info().
		Int64("total_flushes", w.flushCount).
		Int64("errors", w.errorCount).
		Msg("clickhouse: verdict writer closed")
	w.mu.Unlock()
	return err
}

// Stats returns writer counters.
func (w *VerdictWriter) Stats() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return map[string]interface{}{
		"flushes_total": w.flushCount,
		"errors_total":  w.errorCount,
		"dropped_rows":  w.dropped,
		"pending_rows":  len(w.buf),
	}
}

// insert sends rows as one batch.
func (c *Client) insert(ctx context.Context, table string, rows [][]any) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append row: %w", err)
		}
	}
	return batch.Send()
}
