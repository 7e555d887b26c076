package watcher

import (
	"context"
	"fmt"

	"github.com/truemediaorg/mentionbot/bilibili"
	"github.com/truemediaorg/mentionbot/model"

	log "github.com/sirupsen/logrus"
)

type FeedSource interface {
	FetchMentions(ctx context.Context, cursor int64, size int) ([]bilibili.FeedItem, int64, error)
}

type MentionInserter interface {
	InsertMention(ctx context.Context, mention model.Mention) (bool, error)
}

// Watcher pulls the mention feed into the store.
type Watcher struct {
	feed     FeedSource
	db       MentionInserter
	pageSize int
}

func NewWatcher(feed FeedSource, db MentionInserter, pageSize int) *Watcher {
	return &Watcher{
		feed:     feed,
		db:       db,
		pageSize: pageSize,
	}
}

// SyncOnce pages through the whole feed and returns how many mentions were new.
// Already known mentions are counted but never stop the sweep.
func (w *Watcher) SyncOnce(ctx context.Context) (int, error) {
	var cursor int64
	inserted, known, fetched := 0, 0, 0
	for {
		if err := ctx.Err(); err != nil {
			log.WithField("inserted", inserted).Info("mention sync interrupted")
			return inserted, err
		}

		items, next, err := w.feed.FetchMentions(ctx, cursor, w.pageSize)
		if err != nil {
			return inserted, fmt.Errorf("fetching mentions at cursor %d: %w", cursor, err)
		}
		if len(items) == 0 {
			log.Debug("no more mentions to fetch")
			break
		}
		fetched += len(items)
		log.WithField("cursor", cursor).WithField("next", next).Debugf("fetched %d mentions", len(items))

		for _, item := range items {
			kind, ok := IsActionable(item)
			if !ok {
				continue
			}
			isNew, err := w.db.InsertMention(ctx, MentionFromFeedItem(item, kind))
			if err != nil {
				return inserted, fmt.Errorf("storing mention %d: %w", item.ID, err)
			}
			if isNew {
				inserted++
				log.WithField("id", item.ID).WithField("author", item.User.Nickname).Info("inserted new mention")
			} else {
				known++
			}
		}

		// 0 is the feed's own end-of-pages marker
		if next == 0 {
			break
		}
		if next == cursor {
			log.WithField("cursor", cursor).Warn("mention feed returned the same cursor twice, stopping sync")
			break
		}
		cursor = next
	}
	log.WithField("inserted", inserted).WithField("known", known).WithField("fetched", fetched).Info("mention sync complete")
	return inserted, nil
}

// IsActionable applies the reply filter and returns the parsed kind.
func IsActionable(item bilibili.FeedItem) (model.Kind, bool) {
	if item.Item.HideReplyButton {
		log.WithField("id", item.ID).Debug("mention skipped: reply button hidden")
		return "", false
	}
	kind, err := model.ParseKind(string(item.Item.Type))
	if err != nil || !kind.IsActionable() {
		log.WithField("id", item.ID).WithField("type", item.Item.Type).Debug("mention skipped: type not actionable")
		return "", false
	}
	return kind, true
}

func MentionFromFeedItem(item bilibili.FeedItem, kind model.Kind) model.Mention {
	var users []model.MentionedUser
	for _, detail := range item.Item.AtDetails {
		users = append(users, model.MentionedUser{UserID: detail.Mid, DisplayName: detail.Nickname})
	}
	return model.Mention{
		ID:             item.ID,
		Kind:           kind,
		SubjectID:      item.Item.SubjectID,
		RootID:         item.Item.RootID,
		ParentID:       item.Item.TargetID,
		AuthorID:       item.User.Mid,
		AuthorName:     item.User.Nickname,
		Text:           item.Item.SourceContent,
		SubjectTitle:   item.Item.Title,
		SubjectDesc:    item.Item.Desc,
		CreatedEpoch:   item.AtTime,
		Status:         model.StatusPending,
		MentionedUsers: users,
	}
}
