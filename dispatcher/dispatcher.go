package dispatcher

import (
	"context"
	"strconv"
	"time"

	"github.com/lucsky/cuid"
	"github.com/truemediaorg/mentionbot/bilibili"
	"github.com/truemediaorg/mentionbot/model"

	log "github.com/sirupsen/logrus"
)

type ReplyPoster interface {
	AddReply(ctx context.Context, reply bilibili.ReplyRequest) (*bilibili.Response[bilibili.ReplyData], error)
}

type Request struct {
	SubjectID int64
	Kind      model.Kind
	Message   string
	Root      int64
	Parent    int64
}

type Result struct {
	ReplyID   string
	Simulated bool
}

// Dispatcher posts replies no more often than once per interval. The interval
// is measured from the completion of the previous post.
type Dispatcher struct {
	poster          ReplyPoster
	interval        time.Duration
	testModeEnabled bool

	// one-slot semaphore guarding lastDone; acquiring it can be cancelled
	slot     chan struct{}
	lastDone time.Time
	now      func() time.Time
}

func NewDispatcher(poster ReplyPoster, interval time.Duration, isTestMode bool) *Dispatcher {
	return &Dispatcher{
		poster:          poster,
		interval:        interval,
		testModeEnabled: isTestMode,
		slot:            make(chan struct{}, 1),
		now:             time.Now,
	}
}

// Send waits out the throttle and posts one reply. Non-zero response codes are
// returned as *Error.
func (d *Dispatcher) Send(ctx context.Context, req Request) (*Result, error) {
	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-d.slot }()

	if err := d.waitForSlot(ctx); err != nil {
		return nil, err
	}
	defer func() { d.lastDone = d.now() }()

	if d.testModeEnabled {
		replyID := cuid.New()
		log.WithField("subjectId", req.SubjectID).WithField("message", req.Message).Infof("Simulating reply with ID %s", replyID)
		return &Result{ReplyID: replyID, Simulated: true}, nil
	}

	log.WithField("subjectId", req.SubjectID).WithField("kind", req.Kind).WithField("parent", req.Parent).Info("sending reply")
	resp, err := d.poster.AddReply(ctx, bilibili.ReplyRequest{
		SubjectID:    req.SubjectID,
		BusinessType: req.Kind.BusinessType(),
		Message:      req.Message,
		Root:         req.Root,
		Parent:       req.Parent,
	})
	if err != nil {
		return nil, err
	}
	if resp.Code != bilibili.CodeOK {
		return nil, ErrorFromCode(resp.Code, resp.Message)
	}

	replyID := resp.Data.RpIDStr
	if replyID == "" {
		replyID = strconv.FormatInt(resp.Data.RpID, 10)
	}
	return &Result{ReplyID: replyID}, nil
}

func (d *Dispatcher) waitForSlot(ctx context.Context) error {
	if d.lastDone.IsZero() {
		return nil
	}
	wait := d.interval - d.now().Sub(d.lastDone)
	if wait <= 0 {
		return nil
	}
	log.WithField("wait", wait).Debug("throttling reply")
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
