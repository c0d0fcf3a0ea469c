package client

import (
	"context"
	"errors"
	"io"
	"time"

	"agt_platform/internal/domain/model"
	"agt_platform/internal/platform/logger"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 60
	DefaultInterval    = 1500 * time.Millisecond
)

var errMaxWait = errors.New("poller: max wait elapsed")

// API is the part of Client the poller drives.
type API interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	List(ctx context.Context) ([]model.Assignment, error)
	Get(ctx context.Context, id string) (*model.Assignment, error)
	StartGrading(ctx context.Context, id string) error
}

type PollerConfig struct {
	MaxAttempts int
	Interval    time.Duration
	// MaxWait bounds the whole run. Zero means only MaxAttempts bounds it.
	MaxWait time.Duration
	// OnUpdate sees every fetched state, in order.
	OnUpdate func(model.Assignment)
}

// Result is what a run leaves behind, including on error.
type Result struct {
	ID         string
	Assignment *model.Assignment
	List       AssignmentList
	Attempts   int
	Terminal   bool
	TimedOut   bool
}

type Poller struct {
	api API
	cfg PollerConfig
	log zerolog.Logger
}

func NewPoller(api API, cfg PollerConfig) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{api: api, cfg: cfg, log: logger.Component("poller")}
}

// Run uploads the file, triggers grading and polls until the assignment is terminal.
//
// Any API error stops the run and is returned as is; what the server already committed
// stays committed. Running out of attempts or of MaxWait is not an error: the result
// reports Terminal=false, and TimedOut=true for the latter. Cancelling ctx returns ctx.Err().
func (p *Poller) Run(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	runCtx := ctx
	if p.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeoutCause(ctx, p.cfg.MaxWait, errMaxWait)
		defer cancel()
	}

	res := &Result{}
	id, err := p.api.Upload(runCtx, filename, r)
	if err != nil {
		return p.stop(ctx, runCtx, res, err)
	}
	res.ID = id
	log := p.log.With().Str("assignment_id", id).Logger()

	items, err := p.api.List(runCtx)
	if err != nil {
		return p.stop(ctx, runCtx, res, err)
	}
	res.List = NewAssignmentList(items)

	if err := p.api.StartGrading(runCtx, id); err != nil {
		return p.stop(ctx, runCtx, res, err)
	}
	log.Debug().Msg("Grading triggered")

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		a, err := p.api.Get(runCtx, id)
		if err != nil {
			return p.stop(ctx, runCtx, res, err)
		}
		res.Attempts = attempt
		res.Assignment = a
		res.List = res.List.Merge(*a)
		if p.cfg.OnUpdate != nil {
			p.cfg.OnUpdate(*a)
		}
		if a.Status.IsTerminal() {
			res.Terminal = true
			log.Debug().Int("attempts", attempt).Str("status", string(a.Status)).Msg("Grading finished")
			return res, nil
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-runCtx.Done():
			timer.Stop()
			return p.stop(ctx, runCtx, res, runCtx.Err())
		case <-timer.C:
		}
	}

	log.Warn().Int("attempts", res.Attempts).Msg("Gave up polling before a terminal state")
	return res, nil
}

func (p *Poller) stop(ctx, runCtx context.Context, res *Result, err error) (*Result, error) {
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(context.Cause(runCtx), errMaxWait) {
		res.TimedOut = true
		return res, nil
	}
	return res, err
}
