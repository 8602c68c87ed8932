// Package sweeper reclaims task assignments whose leases have expired, so
// an agent that died mid-task never strands its work.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/store"
)

// Sweeper periodically releases expired assignments back to the todo pool.
type Sweeper struct {
	store    *store.Store
	events   *audit.Writer
	interval time.Duration

	mu        sync.Mutex
	sweeps    int
	reclaimed int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sweeper. A non-positive interval falls back to 30s.
func New(s *store.Store, events *audit.Writer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		store:    s,
		events:   events,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the sweep loop.
func (sw *Sweeper) Start() {
	sw.wg.Add(1)
	go sw.loop()
	log.Println("Sweeper started")
}

// Stop gracefully stops the sweeper.
func (sw *Sweeper) Stop() {
	sw.cancel()
	sw.wg.Wait()
	log.Println("Sweeper stopped")
}

func (sw *Sweeper) loop() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.ctx.Done():
			return
		case <-ticker.C:
			sw.Sweep(time.Now().UTC())
		}
	}
}

// Sweep releases every assignment whose lease expired before now and
// returns how many were reclaimed. Exposed so tests can drive it without
// the ticker.
func (sw *Sweeper) Sweep(now time.Time) int {
	tasks, err := sw.store.ExpiredAssignments(now)
	if err != nil {
		log.Printf("Error listing expired assignments: %v", err)
		return 0
	}

	reclaimed := 0
	for _, task := range tasks {
		holder := task.AssignedTo
		if err := sw.store.ReleaseTask(task.ID); err != nil {
			log.Printf("Error releasing task %s: %v", task.ID, err)
			continue
		}
		reclaimed++

		if _, err := sw.events.Record(audit.EventAssignmentExpired, map[string]interface{}{
			"task_id":   task.ID,
			"holder_id": holder,
		}, "reclaimed", task.ID, fmt.Sprintf("lease held by %s expired", holder)); err != nil {
			log.Printf("Error recording expiry event: %v", err)
		}
		log.Printf("Reclaimed task %s from expired holder %s", task.ID, holder)
	}

	sw.mu.Lock()
	sw.sweeps++
	sw.reclaimed += reclaimed
	sw.mu.Unlock()

	return reclaimed
}

// Stats returns cumulative sweep statistics.
func (sw *Sweeper) Stats() map[string]interface{} {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	return map[string]interface{}{
		"sweeps":    sw.sweeps,
		"reclaimed": sw.reclaimed,
		"interval":  sw.interval.String(),
	}
}
