package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truemediaorg/mentionbot/model"
)

// openStoreFunc returns an empty store that is closed when the test ends.
type openStoreFunc func(t *testing.T) Store

func newMention(id int64, createdEpoch int64) model.Mention {
	return model.Mention{
		ID:           id,
		Kind:         model.KindReply,
		SubjectID:    987654,
		AuthorID:     111111,
		AuthorName:   "someone",
		Text:         "hello @bot",
		SubjectTitle: "video title",
		CreatedEpoch: createdEpoch,
		MentionedUsers: []model.MentionedUser{
			{UserID: 6794023, DisplayName: "bot"},
		},
	}
}

// runStoreTests checks the behaviour every Store implementation shares.
func runStoreTests(t *testing.T, open openStoreFunc) {
	t.Run("InsertMention", func(t *testing.T) { testInsertMention(t, open) })
	t.Run("ClaimOnePending", func(t *testing.T) { testClaimOnePending(t, open) })
	t.Run("UpdateStatus", func(t *testing.T) { testUpdateStatus(t, open) })
	t.Run("ListStale", func(t *testing.T) { testListStale(t, open) })
	t.Run("Stats", func(t *testing.T) { testStats(t, open) })
}

func testInsertMention(t *testing.T, open openStoreFunc) {
	ctx := context.Background()

	t.Run("second insert of the same id reports already present", func(t *testing.T) {
		store := open(t)

		inserted, err := store.InsertMention(ctx, newMention(100, 1700000000))
		require.NoError(t, err)
		assert.True(t, inserted)

		duplicate := newMention(100, 1700000000)
		duplicate.Text = "different text"
		inserted, err = store.InsertMention(ctx, duplicate)
		require.NoError(t, err)
		assert.False(t, inserted)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)

		stored, err := store.GetMention(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, "hello @bot", stored.Text)
	})

	t.Run("new mentions default to pending and keep their fields", func(t *testing.T) {
		store := open(t)
		mention := newMention(200, 1700000001)
		mention.RootID = 0
		mention.ParentID = 55
		_, err := store.InsertMention(ctx, mention)
		require.NoError(t, err)

		stored, err := store.GetMention(ctx, 200)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, model.StatusPending, stored.Status)
		assert.Nil(t, stored.ReplyText)
		assert.Equal(t, int64(0), stored.RootID)
		assert.Equal(t, int64(55), stored.ParentID)
		assert.Equal(t, "video title", stored.SubjectTitle)
		assert.Equal(t, mention.MentionedUsers, stored.MentionedUsers)
		assert.False(t, stored.InsertedAt.IsZero())
	})

	t.Run("unknown ids are not an error", func(t *testing.T) {
		store := open(t)
		stored, err := store.GetMention(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("rejects reply text on a non-replied mention", func(t *testing.T) {
		store := open(t)
		mention := newMention(300, 1)
		text := "too early"
		mention.ReplyText = &text
		_, err := store.InsertMention(ctx, mention)
		assert.ErrorIs(t, err, ErrReplyTextInvariant)
	})
}

func testClaimOnePending(t *testing.T, open openStoreFunc) {
	ctx := context.Background()

	for _, testCase := range []struct {
		description string
		order       model.ClaimOrder
		expected    []int64
	}{
		{"newest first claims the latest mention first", model.ClaimOrderNewestFirst, []int64{104, 103, 102, 101, 100}},
		{"oldest first claims the earliest mention first", model.ClaimOrderOldestFirst, []int64{100, 101, 102, 103, 104}},
	} {
		t.Run(testCase.description, func(t *testing.T) {
			store := open(t)
			// insertion order deliberately differs from creation order
			for _, id := range []int64{102, 100, 104, 101, 103} {
				_, err := store.InsertMention(ctx, newMention(id, id))
				require.NoError(t, err)
			}

			var claimed []int64
			for {
				mention, err := store.ClaimOnePending(ctx, testCase.order)
				require.NoError(t, err)
				if mention == nil {
					break
				}
				claimed = append(claimed, mention.ID)
				require.NoError(t, store.UpdateStatus(ctx, mention.ID, model.StatusProcessing, nil))
			}
			assert.Equal(t, testCase.expected, claimed)
		})
	}

	t.Run("returns nil when nothing is pending", func(t *testing.T) {
		store := open(t)
		mention, err := store.ClaimOnePending(ctx, model.ClaimOrderNewestFirst)
		require.NoError(t, err)
		assert.Nil(t, mention)
	})
}

func testUpdateStatus(t *testing.T, open openStoreFunc) {
	ctx := context.Background()

	t.Run("fails with not found for unknown ids", func(t *testing.T) {
		store := open(t)
		err := store.UpdateStatus(ctx, 999, model.StatusFailed, nil)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("reply text is stored only with the replied status", func(t *testing.T) {
		store := open(t)
		_, err := store.InsertMention(ctx, newMention(1, 1))
		require.NoError(t, err)

		assert.ErrorIs(t, store.UpdateStatus(ctx, 1, model.StatusReplied, nil), ErrReplyTextInvariant)
		text := "thanks!"
		assert.ErrorIs(t, store.UpdateStatus(ctx, 1, model.StatusSkipped, &text), ErrReplyTextInvariant)

		require.NoError(t, store.UpdateStatus(ctx, 1, model.StatusReplied, &text))
		stored, err := store.GetMention(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReplied, stored.Status)
		require.NotNil(t, stored.ReplyText)
		assert.Equal(t, "thanks!", *stored.ReplyText)
	})
}

func testListStale(t *testing.T, open openStoreFunc) {
	ctx := context.Background()
	store := open(t)

	for _, id := range []int64{1, 2, 3} {
		_, err := store.InsertMention(ctx, newMention(id, id))
		require.NoError(t, err)
	}
	require.NoError(t, store.UpdateStatus(ctx, 1, model.StatusProcessing, nil))
	require.NoError(t, store.UpdateStatus(ctx, 2, model.StatusProcessing, nil))

	stale, err := store.ListStale(ctx, model.StatusProcessing, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale, "recently updated mentions are not stale")

	stale, err = store.ListStale(ctx, model.StatusProcessing, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 2)

	for _, mention := range stale {
		require.NoError(t, store.UpdateStatus(ctx, mention.ID, model.StatusPending, nil))
	}
	recovered, err := store.GetMention(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, recovered.Status)
}

func testStats(t *testing.T, open openStoreFunc) {
	ctx := context.Background()
	store := open(t)

	empty, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Len(t, empty.ByStatus, len(model.AllStatuses))

	for _, id := range []int64{1, 2, 3} {
		_, err := store.InsertMention(ctx, newMention(id, id))
		require.NoError(t, err)
	}
	require.NoError(t, store.UpdateStatus(ctx, 1, model.StatusProcessing, nil))
	require.NoError(t, store.UpdateStatus(ctx, 1, model.StatusFailed, nil))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[model.StatusPending])
	assert.Equal(t, 1, stats.ByStatus[model.StatusFailed])
	assert.Equal(t, 0, stats.ByStatus[model.StatusReplied])
}
