package duckdb

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// OfflineMonitor watches device liveness and raises a notification when a
// device stops reporting for longer than the threshold, and another when it
// comes back. Devices that have never reported are not flagged.
type OfflineMonitor struct {
	store     *Store
	threshold time.Duration
	interval  time.Duration
	offline   map[string]bool
	done      chan struct{}
	wg        sync.WaitGroup
	tickWg    sync.WaitGroup
	stopOnce  sync.Once
}

// NewOfflineMonitor creates a monitor checking every interval for devices
// silent longer than threshold. Returns nil when either is 0 (disabled).
func NewOfflineMonitor(store *Store, threshold, interval time.Duration) *OfflineMonitor {
	if threshold <= 0 || interval <= 0 {
		return nil
	}

	om := &OfflineMonitor{
		store:     store,
		threshold: threshold,
		interval:  interval,
		offline:   make(map[string]bool),
	}
	om.done = make(chan struct{})

	om.wg.Add(1)
	om.tickWg.Add(1)
	go om.tickLoop()

	return om
}

func (om *OfflineMonitor) tickLoop() {
	defer om.wg.Done()
	defer om.tickWg.Done()
	ticker := time.NewTicker(om.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			om.check(time.Now())
		case <-om.done:
			return
		}
	}
}

// check compares every device's last-seen timestamp against the threshold
// and notifies on transitions in either direction.
func (om *OfflineMonitor) check(now time.Time) {
	devices, err := om.store.ListDevices(0)
	if err != nil {
		log.Printf("duckdb: offline check error: %v", err)
		return
	}

	current := make(map[string]bool, len(devices))
	for _, d := range devices {
		if d.LastSeenAt.IsZero() {
			continue
		}
		current[d.DeviceID] = true

		silent := now.Sub(d.LastSeenAt)
		wasOffline := om.offline[d.DeviceID]
		isOffline := silent > om.threshold

		switch {
		case isOffline && !wasOffline:
			om.offline[d.DeviceID] = true
			message := fmt.Sprintf("device %s went offline (last seen %s)",
				d.DeviceID, d.LastSeenAt.Format(time.RFC3339))
			notified, err := om.store.NotifyDeviceOffline(message)
			if err != nil {
				log.Printf("duckdb: offline notification error: %v", err)
				break
			}
			log.Printf("duckdb: %s, notified %d users", message, notified)
		case !isOffline && wasOffline:
			delete(om.offline, d.DeviceID)
			message := fmt.Sprintf("device %s is back online", d.DeviceID)
			if _, err := om.store.NotifyDeviceOffline(message); err != nil {
				log.Printf("duckdb: offline notification error: %v", err)
				break
			}
			log.Printf("duckdb: %s", message)
		}
	}

	// Forget devices that were deleted while flagged.
	for id := range om.offline {
		if !current[id] {
			delete(om.offline, id)
		}
	}
}

// Stop signals the monitor to stop and waits for it to finish.
func (om *OfflineMonitor) Stop() {
	om.stopOnce.Do(func() {
		close(om.done)
		om.tickWg.Wait()
		om.wg.Wait()
	})
}
