package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/truemediaorg/mentionbot/model"
)

var (
	ErrNotFound = errors.New("mention not found")
	// Reply text must be present exactly when a mention is replied
	ErrReplyTextInvariant = errors.New("reply text must be set if and only if status is replied")
)

// Store is the durable table of mentions. Every write is individually atomic.
type Store interface {
	InsertMention(ctx context.Context, mention model.Mention) (bool, error)
	ClaimOnePending(ctx context.Context, order model.ClaimOrder) (*model.Mention, error)
	UpdateStatus(ctx context.Context, id int64, status model.Status, replyText *string) error
	GetMention(ctx context.Context, id int64) (*model.Mention, error)
	ListStale(ctx context.Context, status model.Status, olderThan time.Time) ([]model.Mention, error)
	Stats(ctx context.Context) (model.Stats, error)
	Close() error
}

func checkReplyText(status model.Status, replyText *string) error {
	if (status == model.StatusReplied) != (replyText != nil) {
		return fmt.Errorf("%w (status=%s)", ErrReplyTextInvariant, status)
	}
	return nil
}

func prepareInsert(mention model.Mention, now time.Time) (model.Mention, error) {
	if mention.Status == "" {
		mention.Status = model.StatusPending
	}
	if err := checkReplyText(mention.Status, mention.ReplyText); err != nil {
		return mention, err
	}
	mention.InsertedAt = now
	mention.UpdatedAt = now
	return mention, nil
}

func emptyStats() model.Stats {
	stats := model.Stats{ByStatus: map[model.Status]int{}}
	for _, status := range model.AllStatuses {
		stats.ByStatus[status] = 0
	}
	return stats
}
