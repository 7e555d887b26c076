package responder

import (
	"regexp"
	"strings"

	"github.com/truemediaorg/mentionbot/model"
)

// Comments posted as a reply to another comment carry an address prefix like "回复 @name :".
var replyPrefixPattern = regexp.MustCompile(`^回复\s+@\S+\s*:\s*`)

// StripReplyPrefix removes the leading address prefix of a threaded reply.
func StripReplyPrefix(text string) string {
	return replyPrefixPattern.ReplaceAllString(text, "")
}

// BotTokens returns the literal "@name" tokens that address the bot. When the
// mention carries no structured user list the nickname is used instead.
func BotTokens(users []model.MentionedUser, botID int64, nickname string) []string {
	var tokens []string
	if len(users) == 0 {
		if nickname != "" {
			tokens = append(tokens, "@"+nickname)
		}
		return tokens
	}
	for _, user := range users {
		if user.UserID == botID && user.DisplayName != "" {
			tokens = append(tokens, "@"+user.DisplayName)
		}
	}
	return tokens
}

// StripTokens removes every literal occurrence of each token and collapses the
// remaining whitespace. Text is returned untouched when there is nothing to strip.
func StripTokens(text string, tokens []string) string {
	if len(tokens) == 0 {
		return text
	}
	for _, token := range tokens {
		text = strings.ReplaceAll(text, token, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

// StripBotMentions removes the bot's own @mentions from text.
func StripBotMentions(text string, users []model.MentionedUser, botID int64, nickname string) string {
	return StripTokens(text, BotTokens(users, botID, nickname))
}

// CleanMentionText prepares a mention's raw text for the reply producer.
func CleanMentionText(mention model.Mention, botID int64, nickname string) string {
	text := mention.Text
	if mention.ParentID != 0 {
		text = StripReplyPrefix(text)
	}
	return strings.TrimSpace(StripBotMentions(text, mention.MentionedUsers, botID, nickname))
}
