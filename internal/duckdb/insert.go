package duckdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/journal"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
const DefaultFlushQueueSize = 64

type journaledPoint struct {
	seq   uint64
	point *TelemetryPoint
}

type durableJournal interface {
	Append(point *model.TelemetryPoint) (uint64, error)
	Commit(seq uint64) error
	Close() error
}

// InsertBuffer batches telemetry points and flushes them to DuckDB
// asynchronously. Add() never blocks on DuckDB writes - points are sent to a
// flush goroutine.
type InsertBuffer struct {
	writer        model.TelemetryWriter
	mu            sync.Mutex
	pending       []journaledPoint
	flushChan     chan []journaledPoint // async flush queue
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup // separate WaitGroup for tickLoop
	journal       durableJournal

	// backpressureCount tracks inline flushes for throttled logging.
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64 // unix timestamp of last backpressure log
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Journal        *journal.Journal
}

// NewInsertBuffer creates a new insert buffer that flushes to the store.
// The flush goroutine processes batches asynchronously so Add() never blocks on IO.
func NewInsertBuffer(writer model.TelemetryWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := 2000
	flushInterval := 100 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
	}

	b := &InsertBuffer{
		writer:        writer,
		pending:       make([]journaledPoint, 0, batchSize),
		flushChan:     make(chan []journaledPoint, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
	if len(conf) > 0 && conf[0].Journal != nil {
		b.journal = conf[0].Journal
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

// tickLoop periodically drains the pending buffer.
func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending() // final drain
			return
		}
	}
}

// logBackpressure emits a throttled warning (at most once per 10 seconds) when
// the flush channel is full and an inline flush is triggered.
func (b *InsertBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("duckdb: backpressure, %d inline flushes (flush channel full, DuckDB falling behind)", count)
	}
}

// drainPending moves pending points to the flush channel without blocking on DuckDB.
func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]journaledPoint, 0, b.maxBatch)
	b.mu.Unlock()

	// Non-blocking send to flush channel. If channel is full, flush synchronously
	// as a safety valve (this means DuckDB is falling behind).
	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		if err := b.flushBatch(batch); err != nil {
			log.Printf("duckdb flush error (inline): %v", err)
		}
	}
}

// flushWorker processes batches from the flush channel.
func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		if err := b.flushBatch(batch); err != nil {
			log.Printf("duckdb flush error: %v", err)
		}
	}
}

// Add queues a point for batch insertion. This never blocks on DuckDB IO.
func (b *InsertBuffer) Add(point *TelemetryPoint) {
	seq := uint64(0)
	if b.journal != nil {
		for {
			var err error
			seq, err = b.journal.Append(point)
			if err == nil {
				break
			}
			log.Printf("duckdb: journal append failed, retrying: %v", err)
			select {
			case <-b.done:
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
	}

	b.mu.Lock()
	b.pending = append(b.pending, journaledPoint{
		seq:   seq,
		point: point,
	})
	shouldFlush := len(b.pending) >= b.maxBatch
	var batch []journaledPoint
	if shouldFlush {
		batch = b.pending
		b.pending = make([]journaledPoint, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if shouldFlush {
		select {
		case b.flushChan <- batch:
		default:
			// Backpressure safety valve: flush inline instead of spawning
			// unbounded goroutines under sustained overload.
			b.logBackpressure()
			if err := b.flushBatch(batch); err != nil {
				log.Printf("duckdb flush error (overflow-inline): %v", err)
			}
		}
	}
}

// Stop flushes remaining points and waits for all writes to complete.
func (b *InsertBuffer) Stop() {
	close(b.done)
	// Wait for tickLoop to finish its final drain before closing flushChan,
	// ensuring all pending points are sent to the flush channel.
	b.tickWg.Wait()
	close(b.flushChan)
	b.wg.Wait()
	if b.journal != nil {
		if err := b.journal.Close(); err != nil {
			log.Printf("duckdb: journal close error: %v", err)
		}
	}
}

func (b *InsertBuffer) flushBatch(batch []journaledPoint) error {
	if len(batch) == 0 {
		return nil
	}

	points := make([]*TelemetryPoint, 0, len(batch))
	for _, item := range batch {
		points = append(points, item.point)
	}

	if err := b.writer.InsertTelemetryBatch(points); err != nil {
		return err
	}

	if b.journal != nil {
		maxSeq := uint64(0)
		for _, item := range batch {
			if item.seq > maxSeq {
				maxSeq = item.seq
			}
		}
		if maxSeq > 0 {
			if err := b.journal.Commit(maxSeq); err != nil {
				return fmt.Errorf("journal commit seq=%d: %w", maxSeq, err)
			}
		}
	}
	return nil
}

// InsertTelemetryBatch appends a batch of telemetry points into DuckDB in a
// single transaction and upserts the devices they belong to, so unknown
// devices are provisioned on first contact. If any individual point fails to
// insert, the entire batch is rolled back and retried point-by-point to
// salvage as many points as possible.
func (s *Store) InsertTelemetryBatch(points []*TelemetryPoint) error {
	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.insertBatchTx(ctx, points)
	if err == nil {
		return nil
	}

	// Batch failed, retry point-by-point to salvage what we can.
	var failed int
	for _, p := range points {
		if rerr := s.insertBatchTx(ctx, []*TelemetryPoint{p}); rerr != nil {
			failed++
			log.Printf("duckdb: dropping point (device=%s variable=%s): %v", p.DeviceID, p.Variable, rerr)
		}
	}
	if failed > 0 {
		log.Printf("duckdb: batch partially failed, %d/%d points dropped", failed, len(points))
	}
	return nil
}

// insertBatchTx inserts points and refreshes device liveness in a single transaction.
func (s *Store) insertBatchTx(ctx context.Context, points []*TelemetryPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	pointStmt, err := tx.PrepareContext(ctx, `INSERT INTO telemetry (device_id, variable, value, ts, metadata, source) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pointStmt.Close()

	deviceStmt, err := tx.PrepareContext(ctx, `INSERT INTO devices (device_id, name, last_seen_at) VALUES (?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET last_seen_at = CASE
			WHEN devices.last_seen_at IS NULL OR excluded.last_seen_at > devices.last_seen_at
			THEN excluded.last_seen_at ELSE devices.last_seen_at END`)
	if err != nil {
		return err
	}
	defer deviceStmt.Close()

	lastSeen := make(map[string]time.Time, 4)
	for _, p := range points {
		metaJSON := []byte("{}")
		if len(p.Metadata) > 0 {
			if data, merr := json.Marshal(p.Metadata); merr != nil {
				log.Printf("duckdb: failed to marshal metadata, using empty: %v", merr)
			} else {
				metaJSON = data
			}
		}

		ts := p.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}

		if _, err := pointStmt.ExecContext(
			ctx,
			p.DeviceID, p.Variable, p.Value, ts, string(metaJSON), p.Source,
		); err != nil {
			return fmt.Errorf("point insert: %w", err)
		}

		if seen, ok := lastSeen[p.DeviceID]; !ok || ts.After(seen) {
			lastSeen[p.DeviceID] = ts
		}
	}

	for deviceID, seenAt := range lastSeen {
		if _, err := deviceStmt.ExecContext(ctx, deviceID, deviceID, seenAt); err != nil {
			return fmt.Errorf("device upsert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
