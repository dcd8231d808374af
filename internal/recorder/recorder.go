package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmelnik/relaylink/internal/config"
	"github.com/dmelnik/relaylink/internal/connection"
)

// Config controls batching behavior.
type Config struct {
	BatchSize     int           // rows per insert batch
	FlushInterval time.Duration // max time a row waits in the batch
	BufferSize    int           // inbound channel capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// FromConfig builds a Config from loaded configuration.
func FromConfig(rc config.RecorderConfig) Config {
	return Config{
		BatchSize:     rc.BatchSize,
		FlushInterval: rc.FlushInterval,
		BufferSize:    rc.BufferSize,
	}
}

// Metrics counts recorder activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Dropped   int64 // frames discarded because the buffer was full
	Errors    int64
}

// frameRow is the database representation of one inbound frame.
type frameRow struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	ReceivedAt int64 // microseconds since epoch
	Payload    []byte
}

// Recorder consumes inbound frames and writes them to the frames table.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	// Input from the Connection Manager
	input chan frameRow
	sub   connection.Subscription

	// Database
	db *pgxpool.Pool

	// Batching
	batch   []frameRow
	batchMu sync.Mutex

	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a Recorder. Call Start before attaching it to a manager.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan frameRow, cfg.BufferSize),
		batch:  make([]frameRow, 0, cfg.BatchSize),
	}
}

// Attach registers the recorder as a message listener on the manager.
func (r *Recorder) Attach(mgr *connection.Manager) {
	r.sub = mgr.Register(connection.EventMessage, r.handleEvent)
}

// Detach removes the listener registration.
func (r *Recorder) Detach(mgr *connection.Manager) {
	mgr.Unregister(r.sub)
}

// Start begins consuming frames and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("frame recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder. Detach from the manager
// first so no frames arrive after the final flush.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping frame recorder")

	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("frame recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("frame recorder stop timed out")
	}

	// Final flush
	r.flush()

	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// handleEvent runs on the manager's dispatch path; it must never
// block, so a full buffer drops the frame.
func (r *Recorder) handleEvent(ev connection.Event) {
	row := frameRow{
		ID:         uuid.New(),
		SessionID:  ev.SessionID,
		ReceivedAt: ev.At.UnixMicro(),
		Payload:    ev.Data,
	}

	select {
	case r.input <- row:
	default:
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
		r.logger.Warn("recorder buffer full, frame dropped")
	}
}

// consumeLoop drains the input channel and accumulates batches.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			// Drain whatever is already buffered into the batch so the
			// final flush captures it.
			for {
				select {
				case row := <-r.input:
					r.batchMu.Lock()
					r.batch = append(r.batch, row)
					r.batchMu.Unlock()
				default:
					return
				}
			}
		case row := <-r.input:
			r.batchMu.Lock()
			r.batch = append(r.batch, row)
			shouldFlush := len(r.batch) >= r.cfg.BatchSize
			r.batchMu.Unlock()

			if shouldFlush {
				r.flush()
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush()
		}
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush() {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]frameRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed frames",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(rows []frameRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO frames (id, session_id, received_at, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, row.ID, row.SessionID, row.ReceivedAt, row.Payload)
	}

	results := r.db.SendBatch(context.Background(), batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
