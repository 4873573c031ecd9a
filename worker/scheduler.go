package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/db"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/pkg/notify"
	"github.com/skyfare/skyfare/queue"
)

// Scheduler runs recurring route sweeps. Each enabled row in the
// scheduled_sweeps table becomes a cron entry that enqueues a
// crawl_parallel job for the route.
type Scheduler struct {
	queue      queue.Queue
	postgresDB *db.PostgresDB
	leader     *LeaderElector
	notifier   *notify.Client
	cron       *cron.Cron
	mutex      sync.Mutex
	jobs       map[int]cron.EntryID
}

// NewScheduler creates a scheduler. The leader elector may be nil,
// in which case every instance fires sweeps; pass one to restrict
// sweep execution to a single instance.
func NewScheduler(q queue.Queue, postgresDB *db.PostgresDB, leader *LeaderElector) *Scheduler {
	return &Scheduler{
		queue:      q,
		postgresDB: postgresDB,
		leader:     leader,
		cron:       cron.New(),
		jobs:       make(map[int]cron.EntryID),
	}
}

// SetNotifier attaches an alert client for sweep announcements. A nil
// client keeps sweeps silent.
func (s *Scheduler) SetNotifier(n *notify.Client) {
	s.notifier = n
}

// Start loads enabled sweeps from the database and starts the cron
// loop.
func (s *Scheduler) Start() error {
	rows, err := s.postgresDB.GetDB().Query(
		"SELECT id, name, cron_expression FROM scheduled_sweeps WHERE enabled = true",
	)
	if err != nil {
		return fmt.Errorf("failed to load scheduled sweeps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var name, cronExpr string
		if err := rows.Scan(&id, &name, &cronExpr); err != nil {
			return fmt.Errorf("failed to scan sweep row: %w", err)
		}

		if err := s.scheduleSweep(id, cronExpr); err != nil {
			logger.Error(err, "failed to schedule sweep", "sweep", id, "name", name)
			continue
		}
		logger.Info("scheduled sweep", "sweep", id, "name", name, "cron", cronExpr)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate sweep rows: %w", err)
	}

	s.cron.Start()
	logger.Info("scheduler started")
	return nil
}

// Stop stops the cron loop and waits for running entries.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("scheduler stopped")
}

func (s *Scheduler) scheduleSweep(sweepID int, cronExpr string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if entryID, exists := s.jobs[sweepID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, sweepID)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.executeSweep(sweepID)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}

	s.jobs[sweepID] = entryID
	return nil
}

// executeSweep reads the sweep definition and enqueues a
// crawl_parallel job for it. Departure dates are relative: days_ahead
// days from the day the sweep fires.
func (s *Scheduler) executeSweep(sweepID int) {
	if s.leader != nil && !s.leader.IsLeader() {
		logger.Debug("skipping sweep, not leader", "sweep", sweepID)
		return
	}

	logger.Info("executing sweep", "sweep", sweepID)

	var sweep struct {
		Name       string
		Origin     string
		Destination string
		DaysAhead  int
		CabinClass string
		Currency   string
		Sources    string
	}
	err := s.postgresDB.GetDB().QueryRow(
		`SELECT name, origin, destination, days_ahead, cabin_class, currency, COALESCE(sources, '')
		FROM scheduled_sweeps WHERE id = $1`,
		sweepID,
	).Scan(&sweep.Name, &sweep.Origin, &sweep.Destination,
		&sweep.DaysAhead, &sweep.CabinClass, &sweep.Currency, &sweep.Sources)
	if err != nil {
		logger.Error(err, "failed to load sweep", "sweep", sweepID)
		return
	}

	departure := time.Now().UTC().AddDate(0, 0, sweep.DaysAhead).Truncate(24 * time.Hour)
	request := core.NewSearchRequest(sweep.Origin, sweep.Destination, departure)
	request.CabinClass = core.CabinClass(sweep.CabinClass)
	if sweep.Currency != "" {
		request.Currency = sweep.Currency
	}

	payload := CrawlParallelPayload{
		Request: request,
		Sources: splitSources(sweep.Sources),
	}

	s.notifier.SweepStarted(context.Background(), sweep.Name, request.Origin, request.Destination)

	jobID, err := s.queue.Enqueue(context.Background(), QueueCrawlParallel, payload)
	if err != nil {
		logger.Error(err, "failed to enqueue sweep", "sweep", sweepID)
		return
	}

	if _, err := s.postgresDB.GetDB().Exec(
		"UPDATE scheduled_sweeps SET last_run = NOW() WHERE id = $1", sweepID,
	); err != nil {
		logger.Error(err, "failed to update sweep last run", "sweep", sweepID)
	}

	logger.Info("enqueued sweep",
		"sweep", sweepID, "name", sweep.Name, "job", jobID,
		"origin", request.Origin, "destination", request.Destination,
		"departure", departure.Format("2006-01-02"))
}

func splitSources(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AddSweep adds or replaces a sweep in the running scheduler.
func (s *Scheduler) AddSweep(sweepID int, cronExpr string) error {
	return s.scheduleSweep(sweepID, cronExpr)
}

// RemoveSweep removes a sweep from the running scheduler.
func (s *Scheduler) RemoveSweep(sweepID int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if entryID, exists := s.jobs[sweepID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, sweepID)
		logger.Info("removed sweep", "sweep", sweepID)
	}
}
