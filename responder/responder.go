package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/truemediaorg/mentionbot/dispatcher"
	"github.com/truemediaorg/mentionbot/model"

	log "github.com/sirupsen/logrus"
)

const finalWriteTimeout = 10 * time.Second

type MentionStore interface {
	ClaimOnePending(ctx context.Context, order model.ClaimOrder) (*model.Mention, error)
	UpdateStatus(ctx context.Context, id int64, status model.Status, replyText *string) error
	ListStale(ctx context.Context, status model.Status, olderThan time.Time) ([]model.Mention, error)
}

type ReplyProducer interface {
	GenerateReply(ctx context.Context, req model.GenerationRequest) (string, error)
}

// ContextFetcher looks up background for a mention. Lookups that fail are
// simply left out of the returned context.
type ContextFetcher interface {
	FetchContext(ctx context.Context, mention model.Mention) model.ReplyContext
}

type ReplySender interface {
	Send(ctx context.Context, req dispatcher.Request) (*dispatcher.Result, error)
}

// Identity is how the bot appears in the text of the mentions it receives.
type Identity struct {
	UserID   int64
	Nickname string
}

type Options struct {
	Order           model.ClaimOrder
	GenerateTimeout time.Duration
	// Mentions left in processing for longer than this are put back to pending
	StaleAfter time.Duration
}

type Responder struct {
	db       MentionStore
	producer ReplyProducer
	fetcher  ContextFetcher
	sender   ReplySender
	identity Identity
	opts     Options
	now      func() time.Time
}

// NewResponder builds a Responder. fetcher may be nil, in which case the
// producer is called without context.
func NewResponder(db MentionStore, producer ReplyProducer, fetcher ContextFetcher, sender ReplySender, identity Identity, opts Options) *Responder {
	return &Responder{
		db:       db,
		producer: producer,
		fetcher:  fetcher,
		sender:   sender,
		identity: identity,
		opts:     opts,
		now:      time.Now,
	}
}

// ProcessNext claims one pending mention and drives it to a final status.
// It reports false when there was nothing to claim. If ctx is cancelled
// mid-flight the mention is left in processing and ctx's error is returned.
func (r *Responder) ProcessNext(ctx context.Context) (bool, error) {
	mention, err := r.db.ClaimOnePending(ctx, r.opts.Order)
	if err != nil {
		return false, fmt.Errorf("claiming pending mention: %w", err)
	}
	if mention == nil {
		return false, nil
	}
	if err := model.ValidateTransition(mention.Status, model.StatusProcessing); err != nil {
		return true, fmt.Errorf("claimed mention %d: %w", mention.ID, err)
	}
	if err := r.db.UpdateStatus(ctx, mention.ID, model.StatusProcessing, nil); err != nil {
		return true, fmt.Errorf("marking mention %d processing: %w", mention.ID, err)
	}
	mention.Status = model.StatusProcessing
	return true, r.process(ctx, *mention)
}

func (r *Responder) process(ctx context.Context, mention model.Mention) (err error) {
	logger := log.WithField("id", mention.ID).WithField("author", mention.AuthorName)
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("recovered from panic while processing mention: %v", p)
			err = r.finish(ctx, mention, model.StatusFailed, nil)
		}
	}()

	status, replyText, err := r.handle(ctx, mention, logger)
	if err != nil {
		logger.WithField("error", err).Warn("processing interrupted, mention left for recovery")
		return err
	}
	return r.finish(ctx, mention, status, replyText)
}

// handle decides the final status of a processing mention. It only returns an
// error when ctx itself was cancelled.
func (r *Responder) handle(ctx context.Context, mention model.Mention, logger *log.Entry) (model.Status, *string, error) {
	req := model.GenerationRequest{
		MentionID:  mention.ID,
		AuthorName: mention.AuthorName,
		Text:       CleanMentionText(mention, r.identity.UserID, r.identity.Nickname),
	}
	if r.fetcher != nil {
		req.Context = r.fetcher.FetchContext(ctx, mention)
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	logger.WithField("text", req.Text).WithField("hasContext", !req.Context.IsEmpty()).Info("generating reply")

	genCtx, cancel := context.WithTimeout(ctx, r.opts.GenerateTimeout)
	reply, err := r.producer.GenerateReply(genCtx, req)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		logger.Errorf("generating reply: %v", err)
		return model.StatusFailed, nil, nil
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		logger.Info("reply producer returned nothing, skipping mention")
		return model.StatusSkipped, nil, nil
	}

	result, err := r.sender.Send(ctx, dispatcher.Request{
		SubjectID: mention.SubjectID,
		Kind:      mention.Kind,
		Message:   reply,
		Root:      mention.RootID,
		Parent:    mention.ParentID,
	})
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return "", nil, err
		}
		var dispatchErr *dispatcher.Error
		if errors.As(err, &dispatchErr) && dispatchErr.Class() == dispatcher.ErrorClassFatal {
			logger.WithField("code", dispatchErr.Code).Errorf("reply rejected, session needs attention: %v", err)
		} else {
			logger.Errorf("sending reply: %v", err)
		}
		return model.StatusFailed, nil, nil
	}
	logger.WithField("replyId", result.ReplyID).WithField("simulated", result.Simulated).Info("replied to mention")
	return model.StatusReplied, &reply, nil
}

// finish writes the final status. The write is detached from ctx so a reply
// that already went out is recorded even during shutdown.
func (r *Responder) finish(ctx context.Context, mention model.Mention, status model.Status, replyText *string) error {
	if err := model.ValidateTransition(mention.Status, status); err != nil {
		return fmt.Errorf("finishing mention %d: %w", mention.ID, err)
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()
	if err := r.db.UpdateStatus(writeCtx, mention.ID, status, replyText); err != nil {
		if status == model.StatusReplied {
			log.WithField("id", mention.ID).Warn("Reply posted but wasn't recorded in the database")
		}
		return fmt.Errorf("marking mention %d %s: %w", mention.ID, status, err)
	}
	return nil
}

// RecoverStale puts mentions stuck in processing back to pending and returns
// how many were reset.
func (r *Responder) RecoverStale(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.opts.StaleAfter)
	stale, err := r.db.ListStale(ctx, model.StatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale mentions: %w", err)
	}
	recovered := 0
	for _, mention := range stale {
		if err := model.ValidateTransition(mention.Status, model.StatusPending); err != nil {
			return recovered, fmt.Errorf("recovering mention %d: %w", mention.ID, err)
		}
		if err := r.db.UpdateStatus(ctx, mention.ID, model.StatusPending, nil); err != nil {
			return recovered, fmt.Errorf("recovering mention %d: %w", mention.ID, err)
		}
		log.WithField("id", mention.ID).WithField("updatedAt", mention.UpdatedAt).Warn("reset stale mention to pending")
		recovered++
	}
	return recovered, nil
}
