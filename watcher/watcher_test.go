package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/truemediaorg/mentionbot/bilibili"
	"github.com/truemediaorg/mentionbot/database"
	"github.com/truemediaorg/mentionbot/model"
)

type MockFeedSource struct {
	mock.Mock
}

func (m *MockFeedSource) FetchMentions(ctx context.Context, cursor int64, size int) ([]bilibili.FeedItem, int64, error) {
	args := m.Called(ctx, cursor, size)
	return args.Get(0).([]bilibili.FeedItem), args.Get(1).(int64), args.Error(2)
}

type MockMentionInserter struct {
	mock.Mock
}

func (m *MockMentionInserter) InsertMention(ctx context.Context, mention model.Mention) (bool, error) {
	args := m.Called(ctx, mention)
	return args.Bool(0), args.Error(1)
}

func feedItem(id int64, kind bilibili.FlexString, hidden bool) bilibili.FeedItem {
	return bilibili.FeedItem{
		ID:   id,
		User: bilibili.FeedUser{Mid: 111111, Nickname: "someone"},
		Item: bilibili.FeedItemBody{
			Type:            kind,
			SubjectID:       987654,
			TargetID:        42,
			SourceContent:   "hello @bot",
			Title:           "Go 并发入门",
			Desc:            "第一集",
			HideReplyButton: hidden,
			AtDetails:       []bilibili.AtDetail{{Mid: 6794023, Nickname: "bot"}},
		},
		AtTime: 1700000000 + id,
	}
}

func TestIsActionable(t *testing.T) {
	testCases := []struct {
		description string
		item        bilibili.FeedItem
		actionable  bool
	}{
		{"string reply is actionable", feedItem(1, "reply", false), true},
		{"numeric reply is actionable", feedItem(2, "1", false), true},
		{"dynamic mention is actionable", feedItem(3, "dynamic", false), true},
		{"numeric dynamic mention is actionable", feedItem(4, "17", false), true},
		{"hidden reply button is never actionable", feedItem(5, "reply", true), false},
		{"likes are not actionable", feedItem(6, "like", false), false},
		{"unknown kinds are not actionable", feedItem(7, "share", false), false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			_, ok := IsActionable(testCase.item)
			assert.Equal(t, testCase.actionable, ok)
		})
	}
}

func TestSyncOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts two of three mentions when one hides its reply button", func(t *testing.T) {
		store, err := database.OpenSQLite(filepath.Join(t.TempDir(), "mentions.db"))
		require.NoError(t, err)
		defer store.Close()

		feed := new(MockFeedSource)
		feed.On("FetchMentions", ctx, int64(0), 20).Return([]bilibili.FeedItem{
			feedItem(1, "reply", false),
			feedItem(2, "1", false),
			feedItem(3, "reply", true),
		}, int64(0), nil)

		inserted, err := NewWatcher(feed, store, 20).SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 2, stats.ByStatus[model.StatusPending])

		stored, err := store.GetMention(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, model.KindReply, stored.Kind)
		assert.Equal(t, int64(42), stored.ParentID)
		assert.Equal(t, "Go 并发入门", stored.SubjectTitle)
		assert.Equal(t, "第一集", stored.SubjectDesc)
		assert.Equal(t, []model.MentionedUser{{UserID: 6794023, DisplayName: "bot"}}, stored.MentionedUsers)

		inserted, err = NewWatcher(feed, store, 20).SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, inserted, "a second sweep finds nothing new")
	})

	t.Run("follows cursors until the zero cursor and keeps going past known mentions", func(t *testing.T) {
		feed := new(MockFeedSource)
		feed.On("FetchMentions", ctx, int64(0), 2).Return([]bilibili.FeedItem{feedItem(1, "reply", false), feedItem(2, "reply", false)}, int64(500), nil)
		feed.On("FetchMentions", ctx, int64(500), 2).Return([]bilibili.FeedItem{feedItem(3, "reply", false)}, int64(0), nil)
		db := new(MockMentionInserter)
		db.On("InsertMention", ctx, mock.MatchedBy(func(m model.Mention) bool { return m.ID == 1 })).Return(false, nil)
		db.On("InsertMention", ctx, mock.Anything).Return(true, nil)

		inserted, err := NewWatcher(feed, db, 2).SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)
		feed.AssertNumberOfCalls(t, "FetchMentions", 2)
		db.AssertNumberOfCalls(t, "InsertMention", 3)
	})

	t.Run("stops on an empty page", func(t *testing.T) {
		feed := new(MockFeedSource)
		feed.On("FetchMentions", ctx, int64(0), 20).Return([]bilibili.FeedItem{}, int64(99), nil)

		inserted, err := NewWatcher(feed, new(MockMentionInserter), 20).SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)
		feed.AssertNumberOfCalls(t, "FetchMentions", 1)
	})

	t.Run("a protocol error aborts only this sweep", func(t *testing.T) {
		feed := new(MockFeedSource)
		feed.On("FetchMentions", ctx, int64(0), 20).Return([]bilibili.FeedItem{feedItem(1, "reply", false)}, int64(7), nil)
		feed.On("FetchMentions", ctx, int64(7), 20).Return([]bilibili.FeedItem{}, int64(0), &bilibili.APIError{Code: -412})
		db := new(MockMentionInserter)
		db.On("InsertMention", ctx, mock.Anything).Return(true, nil)

		inserted, err := NewWatcher(feed, db, 20).SyncOnce(ctx)
		var apiErr *bilibili.APIError
		assert.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 1, inserted)
	})

	t.Run("does not fetch once cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		feed := new(MockFeedSource)

		_, err := NewWatcher(feed, new(MockMentionInserter), 20).SyncOnce(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
		feed.AssertNotCalled(t, "FetchMentions", mock.Anything, mock.Anything, mock.Anything)
	})
}
