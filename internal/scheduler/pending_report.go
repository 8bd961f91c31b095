package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"assetmanager/internal/logger"
	"assetmanager/internal/metrics"
)

// PendingCounter reports the size of the approval backlog.
type PendingCounter interface {
	CountPending(staleBefore time.Time) (pending, stale int64, err error)
}

// PendingReport publishes the approval backlog to metrics and warns when
// readings have been waiting longer than StaleAfter.
type PendingReport struct {
	Counter    PendingCounter
	Recorder   metrics.Recorder
	StaleAfter time.Duration
	Now        func() time.Time

	log *zap.SugaredLogger
}

// NewPendingReport creates a PendingReport with the wall clock.
func NewPendingReport(counter PendingCounter, recorder metrics.Recorder, staleAfter time.Duration) *PendingReport {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &PendingReport{
		Counter:    counter,
		Recorder:   recorder,
		StaleAfter: staleAfter,
		Now:        time.Now,
		log:        logger.Named("pending-report"),
	}
}

// Run takes one backlog measurement. It is shaped to be a Runner job.
func (p *PendingReport) Run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	staleBefore := p.Now().UTC().Add(-p.StaleAfter)
	pending, stale, err := p.Counter.CountPending(staleBefore)
	if err != nil {
		p.log.Errorw("failed to count pending data points", "error", err)
		return
	}

	p.Recorder.SetPending(float64(pending))
	p.Recorder.SetStalePending(float64(stale))

	if stale > 0 {
		p.log.Warnw("data points awaiting approval past stale age",
			"stale", stale,
			"pending", pending,
			"stale_after", p.StaleAfter.String(),
		)
	}
}
