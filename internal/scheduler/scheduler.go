// Package scheduler runs periodic study reminders.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

const (
	DefaultInterval = time.Hour

	checkTimeout = 10 * time.Second
)

// DueCounter reports how many questions are due for study right now.
type DueCounter interface {
	DueCount(ctx context.Context) (int, error)
}

// Scheduler logs the due count on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	counter   DueCounter
	interval  time.Duration

	lastDue atomic.Int64
	runs    atomic.Int64
}

func New(counter DueCounter, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		counter:   counter,
		interval:  interval,
	}
}

// Start schedules the reminder job and returns without blocking. The first
// check runs immediately.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.CheckDue); err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	s.scheduler.StartAsync()
	log.Printf("[reminder] checking due questions every %s", s.interval)
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Run starts the scheduler and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// CheckDue counts due questions once and logs the result.
func (s *Scheduler) CheckDue() {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	n, err := s.counter.DueCount(ctx)
	s.runs.Add(1)
	if err != nil {
		log.Printf("[reminder] due check failed: %v", err)
		return
	}
	s.lastDue.Store(int64(n))

	if n == 0 {
		log.Printf("[reminder] nothing due, all caught up")
		return
	}
	log.Printf("[reminder] %d questions due for review", n)
}

// LastDue is the count from the most recent successful check.
func (s *Scheduler) LastDue() int {
	return int(s.lastDue.Load())
}

// Runs is the number of checks attempted so far.
func (s *Scheduler) Runs() int {
	return int(s.runs.Load())
}
