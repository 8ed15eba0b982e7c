package instance

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"reporting-scheduler/pkg/config"
)

// Poller hands out pending work to competing workers. Claiming is a
// conditional status write, so two workers polling at once can never both
// walk away with the same instance.
type Poller struct {
	repo   Repository
	cfg    *config.Config
	logger *zap.Logger
}

// PollResult tells the worker what to do next. Instance is non-nil only when
// a claim landed; otherwise RetryAfter says how long to back off before the
// next poll.
type PollResult struct {
	RetryAfter time.Duration
	Instance   *Instance
}

func NewPoller(repo Repository, cfg *config.Config, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.L()
	}
	return &Poller{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// Poll scans the pending queue and tries to claim one instance by moving it
// from Scheduled to Executing.
//
// No pending work: back off for a random interval between the configured
// minimum and maximum, spreading out an idle fleet so polls do not clump.
// Pending work but every claim attempt lost the race: retry after the
// minimum, since a busy queue means more work is likely right behind.
func (p *Poller) Poll(ctx context.Context) (*PollResult, error) {
	min := time.Duration(p.cfg.Reports.MinPollingSeconds) * time.Second
	max := time.Duration(p.cfg.Reports.MaxPollingSeconds) * time.Second

	recs, err := p.repo.ListByStatus(ctx, Scheduled, p.cfg.Reports.DefaultItemsQueryCount)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &PollResult{RetryAfter: p.backoff(min, max)}, nil
	}

	// Shuffle so concurrent pollers do not all chase the same head-of-queue
	// row and burn their attempts on guaranteed conflicts.
	rand.Shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })

	attempts := len(recs)
	if p.cfg.Reports.MaxLockRetries < attempts {
		attempts = p.cfg.Reports.MaxLockRetries
	}

	for i := 0; i < attempts; i++ {
		rec := &recs[i]
		claimed, cerr := p.repo.UpdateStatusIfSeqNo(ctx, rec.ID, rec.SeqNo, Executing, "")
		if cerr != nil {
			return nil, cerr
		}
		if !claimed {
			p.logger.Debug("lost claim race", zap.String("instance_id", rec.ID))
			continue
		}

		// Re-read to return the post-claim version and the access list,
		// which ListByStatus does not preload.
		fresh, gerr := p.repo.Get(ctx, rec.ID)
		if gerr != nil {
			return nil, gerr
		}
		inst, ierr := instanceFromRecord(fresh)
		if ierr != nil {
			return nil, ierr
		}
		p.logger.Info("claimed report instance", zap.String("instance_id", inst.ID))
		return &PollResult{RetryAfter: 0, Instance: inst}, nil
	}

	return &PollResult{RetryAfter: min}, nil
}

func (p *Poller) backoff(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
