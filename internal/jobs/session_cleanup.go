package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/services"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/storage"
)

// SessionCleanupJob deletes sessions idle past the TTL and processed event
// ids past their de-duplication window on a cron schedule.
type SessionCleanupJob struct {
	sessions  *services.SessionManager
	events    storage.EventStore
	templates *services.TemplateService
	schedule  string
	timeout   time.Duration
	now       func() time.Time

	scheduler *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Sessions int64
	Events   int64
}

// NewSessionCleanupJob creates the job. events may be nil when ids are kept
// elsewhere (Redis expires its own keys). When templates is non-nil, users
// whose flow was cut short get a session_expired template before the sweep.
func NewSessionCleanupJob(sessions *services.SessionManager, events storage.EventStore, templates *services.TemplateService, schedule string) *SessionCleanupJob {
	return &SessionCleanupJob{
		sessions:  sessions,
		events:    events,
		templates: templates,
		schedule:  schedule,
		timeout:   time.Minute,
		now:       time.Now,
		scheduler: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}
}

// Start registers the sweep and starts the scheduler.
func (j *SessionCleanupJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isRunning {
		logger.Warn().Msg("Session cleanup job already running")
		return nil
	}

	_, err := j.scheduler.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Session cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid session sweep schedule %q: %w", j.schedule, err)
	}

	j.scheduler.Start()
	j.isRunning = true
	logger.Info().Str("schedule", j.schedule).Dur("ttl", j.sessions.TTL()).Msg("Session cleanup job started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep, up to ctx.
func (j *SessionCleanupJob) Stop(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.isRunning {
		return
	}
	j.isRunning = false

	select {
	case <-j.scheduler.Stop().Done():
	case <-ctx.Done():
		logger.Warn().Msg("Session cleanup still running at shutdown")
	}
}

// Run performs one sweep.
func (j *SessionCleanupJob) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	if j.templates != nil {
		j.notifyExpired(ctx)
	}

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		return res, fmt.Errorf("delete expired sessions: %w", err)
	}
	res.Sessions = deleted

	if j.events != nil {
		pruned, err := j.events.DeleteExpiredEvents(ctx, j.now())
		if err != nil {
			return res, fmt.Errorf("delete expired events: %w", err)
		}
		res.Events = pruned
	}

	if res.Sessions > 0 || res.Events > 0 {
		logger.Info().Int64("sessions", res.Sessions).Int64("events", res.Events).Msg("Expired records removed")
	}
	return res, nil
}

func (j *SessionCleanupJob) notifyExpired(ctx context.Context) {
	expired, err := j.sessions.ExpiredSessions(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to list expired sessions")
		return
	}

	for _, s := range expired {
		if !s.InFlow() {
			continue
		}
		err := j.templates.SendTemplate(ctx, s.PhoneNumber, services.TemplateSessionExpired, map[string]string{
			"flow": s.CurrentFlow,
		})
		if err != nil {
			logger.Warn().Err(err).Str("phone", s.PhoneNumber).Msg("Failed to send session expiry notice")
		}
	}
}
