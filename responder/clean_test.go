package responder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/truemediaorg/mentionbot/model"
)

func TestStripReplyPrefix(t *testing.T) {
	testCases := []struct {
		text     string
		expected string
	}{
		{"回复 @alice :你好", "你好"},
		{"回复 @alice:你好", "你好"},
		{"回复  @alice  :  你好", "你好"},
		{"你好 回复 @alice :", "你好 回复 @alice :"},
		{"no prefix here", "no prefix here"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.text, func(t *testing.T) {
			assert.Equal(t, testCase.expected, StripReplyPrefix(testCase.text))
		})
	}
}

func TestStripBotMentions(t *testing.T) {
	testCases := []struct {
		description string
		text        string
		users       []model.MentionedUser
		nickname    string
		expected    string
	}{
		{
			"strips the bot but keeps other users",
			"@x 光 你好 @other 也你好",
			[]model.MentionedUser{{UserID: 6794023, DisplayName: "x 光"}, {UserID: 111111, DisplayName: "other"}},
			"",
			"你好 @other 也你好",
		},
		{
			"falls back to the nickname without a user list",
			"@x 光 你好 @other 也你好",
			nil,
			"x 光",
			"你好 @other 也你好",
		},
		{
			"leaves text alone with nothing to strip",
			"@x 光 你好",
			nil,
			"",
			"@x 光 你好",
		},
		{
			"handles special characters in names",
			"@bot(测试) 你好",
			[]model.MentionedUser{{UserID: 6794023, DisplayName: "bot(测试)"}},
			"",
			"你好",
		},
		{
			"strips every occurrence",
			"@bot 你好 @bot 再见",
			[]model.MentionedUser{{UserID: 6794023, DisplayName: "bot"}},
			"",
			"你好 再见",
		},
		{
			"ignores the nickname when the list does not name the bot",
			"@bot 你好",
			[]model.MentionedUser{{UserID: 111111, DisplayName: "other"}},
			"bot",
			"@bot 你好",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expected, StripBotMentions(testCase.text, testCase.users, 6794023, testCase.nickname))
		})
	}
}

func TestCleanMentionText(t *testing.T) {
	users := []model.MentionedUser{{UserID: 6794023, DisplayName: "bot"}}

	t.Run("strips the reply prefix for threaded mentions", func(t *testing.T) {
		mention := model.Mention{ParentID: 42, Text: "回复 @alice :@bot 帮我看看", MentionedUsers: users}
		assert.Equal(t, "帮我看看", CleanMentionText(mention, 6794023, "bot"))
	})

	t.Run("keeps the prefix on top level mentions", func(t *testing.T) {
		mention := model.Mention{Text: "回复 @alice :@bot 帮我看看", MentionedUsers: users}
		assert.Equal(t, "回复 @alice : 帮我看看", CleanMentionText(mention, 6794023, "bot"))
	})
}
