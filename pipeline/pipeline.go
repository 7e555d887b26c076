package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lucsky/cuid"
	"github.com/truemediaorg/mentionbot/model"

	log "github.com/sirupsen/logrus"
)

type MentionSyncer interface {
	SyncOnce(ctx context.Context) (int, error)
}

type MentionProcessor interface {
	RecoverStale(ctx context.Context) (int, error)
	ProcessNext(ctx context.Context) (bool, error)
}

// Pipeline is the single worker loop: recover, sync, then process a batch.
type Pipeline struct {
	watcher      MentionSyncer
	responder    MentionProcessor
	pollInterval time.Duration
	batchSize    int

	stop     chan struct{}
	stopOnce sync.Once
}

func NewPipeline(watcher MentionSyncer, responder MentionProcessor, pollInterval time.Duration, batchSize int) *Pipeline {
	return &Pipeline{
		watcher:      watcher,
		responder:    responder,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		stop:         make(chan struct{}),
	}
}

// Stop asks Run to exit. Calling it more than once is a no-op.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		log.Info("stopping pipeline")
		close(p.stop)
	})
}

// Run loops until ctx is done or Stop is called. It only returns an error for
// invariant violations, which mean the store can no longer be trusted.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	log.WithField("pollInterval", p.pollInterval).WithField("batchSize", p.batchSize).Info("pipeline started")
	for {
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				break
			}
			log.Errorf("pipeline aborted: %v", err)
			return err
		}

		timer := time.NewTimer(p.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("pipeline stopped")
			return nil
		case <-timer.C:
		}
	}
	log.Info("pipeline stopped")
	return nil
}

// RunOnce performs a single iteration. Errors from recovery, sync or a single
// mention are logged; only cancellation and invariant violations are returned.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	logger := log.WithField("run", cuid.New())

	recovered, err := p.responder.RecoverStale(ctx)
	if err != nil {
		if fatal := p.abortErr(ctx, err); fatal != nil {
			return fatal
		}
		logger.Errorf("recovering stale mentions: %v", err)
	} else if recovered > 0 {
		logger.WithField("recovered", recovered).Warn("recovered stale mentions")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	inserted, err := p.watcher.SyncOnce(ctx)
	if err != nil {
		if fatal := p.abortErr(ctx, err); fatal != nil {
			return fatal
		}
		logger.Errorf("syncing mentions: %v", err)
	}

	processed := 0
	for processed < p.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		claimed, err := p.responder.ProcessNext(ctx)
		if err != nil {
			if fatal := p.abortErr(ctx, err); fatal != nil {
				return fatal
			}
			logger.Errorf("processing mention: %v", err)
			break
		}
		if !claimed {
			break
		}
		processed++
	}
	logger.WithField("inserted", inserted).WithField("processed", processed).Info("pipeline iteration complete")
	return nil
}

func (p *Pipeline) abortErr(ctx context.Context, err error) error {
	if errors.Is(err, model.ErrIllegalTransition) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}
