// Package scheduler runs periodic background jobs on a cron schedule.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"assetmanager/internal/logger"
)

// Runner wraps a cron instance whose jobs share a base context.
type Runner struct {
	cron    *cron.Cron
	log     *zap.SugaredLogger
	baseCtx context.Context
}

// New creates a Runner. Jobs receive baseCtx, or context.Background when nil.
func New(baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		log:     logger.Named("scheduler"),
		baseCtx: baseCtx,
	}
}

// Add registers job under a standard cron spec or a descriptor such as "@every 1m".
func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// Entries returns the number of registered jobs.
func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	r.log.Info("cron started")
	r.cron.Start()
}

// Stop waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("cron stopped")
}
