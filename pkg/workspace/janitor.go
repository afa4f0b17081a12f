package workspace

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor sweeps open sessions older than the TTL on a cron schedule.
// Abandoned browser sessions would otherwise leak staging directories.
type Janitor struct {
	manager *Manager
	ttl     time.Duration
	cron    *cron.Cron
}

func NewJanitor(manager *Manager, ttl time.Duration) *Janitor {
	return &Janitor{
		manager: manager,
		ttl:     ttl,
		cron:    cron.New(),
	}
}

// Start schedules the sweep. The spec is a standard cron expression,
// e.g. "@every 15m".
func (j *Janitor) Start(spec string) error {
	_, err := j.cron.AddFunc(spec, j.Sweep)
	if err != nil {
		return err
	}

	j.cron.Start()

	return nil
}

// Sweep releases every open session whose age exceeds the TTL.
func (j *Janitor) Sweep() {
	cutoff := time.Now().UTC().Add(-j.ttl)

	for _, session := range j.manager.OpenSessions() {
		if session.CreatedAt.Before(cutoff) {
			err := j.manager.Release(session)
			if err != nil {
				j.manager.logger.Warn("Failed to release expired session",
					"session_id", session.ID, "error", err)
			}
		}
	}
}

func (j *Janitor) Stop() {
	j.cron.Stop()
}
