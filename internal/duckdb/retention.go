package duckdb

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// RetentionCleaner periodically purges telemetry, device events, and expired
// trash according to the stored retention policy. Every run is recorded as a
// retention execution, and users who opted in get a summary notification.
type RetentionCleaner struct {
	store    *Store
	interval time.Duration
	runMu    sync.Mutex
	done     chan struct{}
	wg       sync.WaitGroup
	tickWg   sync.WaitGroup
	stopOnce sync.Once
}

// NewRetentionCleaner creates a retention cleaner ticking at interval.
// Returns nil when interval is 0 (disabled).
func NewRetentionCleaner(store *Store, interval time.Duration) *RetentionCleaner {
	if interval <= 0 {
		return nil
	}

	rc := &RetentionCleaner{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}

	// Startup cleanup to catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	rc.tickWg.Add(1)
	go rc.tickLoop()

	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	defer rc.tickWg.Done()
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	if _, err := rc.RunNow(); err != nil {
		log.Printf("duckdb: retention cleanup error: %v", err)
	}
}

// RunNow executes one retention cycle immediately and returns its execution
// record. Cycles are serialized, so an API-triggered run never overlaps the
// scheduled one.
func (rc *RetentionCleaner) RunNow() (RetentionExecution, error) {
	rc.runMu.Lock()
	defer rc.runMu.Unlock()

	policy, err := rc.store.RetentionPolicy()
	if err != nil {
		return RetentionExecution{}, fmt.Errorf("duckdb: read retention policy: %w", err)
	}

	now := time.Now().UTC()
	ex := RetentionExecution{StartedAt: now, Status: "completed"}
	var firstErr error

	if policy.TelemetryDays > 0 {
		cutoff := now.Add(-time.Duration(policy.TelemetryDays) * 24 * time.Hour)
		n, err := rc.store.DeleteTelemetryBefore(cutoff)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("purge telemetry: %w", err)
		}
		ex.TelemetryDeleted = n
	}
	if policy.EventDays > 0 {
		cutoff := now.Add(-time.Duration(policy.EventDays) * 24 * time.Hour)
		n, err := rc.store.DeleteEventsBefore(cutoff)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("purge events: %w", err)
		}
		ex.EventsDeleted = n
	}
	n, err := rc.store.DeleteExpiredTrash(now)
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("purge trash: %w", err)
	}
	ex.TrashDeleted = n

	ex.FinishedAt = time.Now().UTC()
	if firstErr != nil {
		ex.Status = "failed"
		ex.Detail = firstErr.Error()
	}

	recorded, recErr := rc.store.RecordRetentionExecution(ex)
	if recErr != nil {
		log.Printf("duckdb: record retention execution: %v", recErr)
		recorded = ex
	}

	total := ex.TelemetryDeleted + ex.EventsDeleted + ex.TrashDeleted
	if total > 0 {
		log.Printf("duckdb: retention removed %d telemetry points, %d events, %d trash entries",
			ex.TelemetryDeleted, ex.EventsDeleted, ex.TrashDeleted)
		message := fmt.Sprintf("retention removed %d telemetry points, %d events, and %d trash entries",
			ex.TelemetryDeleted, ex.EventsDeleted, ex.TrashDeleted)
		if _, err := rc.store.NotifyRetentionReport(message); err != nil {
			log.Printf("duckdb: retention report notification: %v", err)
		}
	}

	if firstErr != nil {
		return recorded, firstErr
	}
	return recorded, nil
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.tickWg.Wait()
		rc.wg.Wait()
	})
}
