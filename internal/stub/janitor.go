package stub

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// janitor prunes idle session rooms on a cron schedule.
type janitor struct {
	cron *cron.Cron
	rms  *rooms
	ttl  time.Duration
}

func newJanitor(rms *rooms, schedule string, ttl time.Duration) (*janitor, error) {
	j := &janitor{cron: cron.New(), rms: rms, ttl: ttl}
	_, err := j.cron.AddFunc(schedule, j.sweep)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (j *janitor) sweep() {
	if n := j.rms.prune(j.ttl); n > 0 {
		slog.Info("pruned idle sessions", "count", n, "ttl", j.ttl)
	}
}

func (j *janitor) start() { j.cron.Start() }

func (j *janitor) stop() { j.cron.Stop() }
