package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/truemediaorg/mentionbot/bilibili"
	"github.com/truemediaorg/mentionbot/config"
	"github.com/truemediaorg/mentionbot/model"

	log "github.com/sirupsen/logrus"
)

const (
	maxTitleRunes       = 1000
	maxDescriptionRunes = 500
	maxCommentRunes     = 2000
)

type BilibiliService struct {
	client    *bilibili.Client
	sanitizer *bluemonday.Policy
}

func NewBilibiliService(client *bilibili.Client) *BilibiliService {
	return &BilibiliService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// LoadCredentials reads the session cookies from Secrets Manager when a path is
// configured and from the credentials file otherwise.
func LoadCredentials(ctx context.Context, cfg config.BilibiliConfig, secrets SecretGetter) (bilibili.Credentials, error) {
	if cfg.SecretPath != "" {
		raw, err := ReadSecretString(ctx, secrets, cfg.SecretPath)
		if err != nil {
			return bilibili.Credentials{}, err
		}
		return bilibili.ParseCredentials([]byte(raw))
	}
	return bilibili.LoadCredentialsFile(cfg.CredentialPath)
}

func (s *BilibiliService) FetchMentions(ctx context.Context, cursor int64, size int) ([]bilibili.FeedItem, int64, error) {
	return s.client.FetchMentions(ctx, cursor, size)
}

func (s *BilibiliService) AddReply(ctx context.Context, reply bilibili.ReplyRequest) (*bilibili.Response[bilibili.ReplyData], error) {
	return s.client.AddReply(ctx, reply)
}

// BotIdentity returns the bot's user id and nickname. The nickname comes from
// the nav endpoint, or from fallback when that lookup fails.
func (s *BilibiliService) BotIdentity(ctx context.Context, fallback string) (int64, string) {
	userID := s.client.Credentials().UserID()
	nav, err := s.client.Nav(ctx)
	switch {
	case err != nil:
		log.Warnf("unable to look up bot nickname: %v", err)
	case !nav.IsLogin:
		log.Warn("session is not logged in, using configured bot nickname")
	default:
		if userID == 0 {
			userID = nav.Mid
		}
		if nav.Uname != "" {
			return userID, nav.Uname
		}
	}
	return userID, fallback
}

// FetchContext collects the video and surrounding comments of a mention. Each
// lookup is best effort. When the video lookup fails the title and description
// stored from the feed item are used instead.
func (s *BilibiliService) FetchContext(ctx context.Context, mention model.Mention) model.ReplyContext {
	logger := log.WithField("id", mention.ID).WithField("subjectId", mention.SubjectID)
	replyContext := model.ReplyContext{
		SubjectTitle:       s.plain(mention.SubjectTitle, maxTitleRunes),
		SubjectDescription: s.plain(mention.SubjectDesc, maxDescriptionRunes),
	}
	if mention.SubjectID == 0 {
		return replyContext
	}

	video, err := s.client.VideoInfo(ctx, mention.SubjectID)
	if err != nil {
		logger.Warnf("failed to fetch video info: %v", err)
	} else {
		replyContext.SubjectTitle = s.plain(video.Title, maxTitleRunes)
		replyContext.SubjectDescription = s.plain(video.Desc, maxDescriptionRunes)
	}

	if mention.ParentID != 0 {
		var parent *bilibili.Comment
		if mention.RootID == 0 {
			parent, err = s.client.RootComment(ctx, mention.SubjectID, mention.ParentID)
		} else {
			parent, err = s.client.ThreadComment(ctx, mention.SubjectID, mention.RootID, mention.ParentID)
		}
		if err != nil {
			logger.Warnf("failed to fetch parent comment %d: %v", mention.ParentID, err)
		} else if parent != nil {
			replyContext.ParentText = s.plain(parent.Content.Message, maxCommentRunes)
		}
	}

	if mention.RootID != 0 && mention.RootID != mention.ParentID {
		root, err := s.client.RootComment(ctx, mention.SubjectID, mention.RootID)
		if err != nil {
			logger.Warnf("failed to fetch root comment %d: %v", mention.RootID, err)
		} else if root != nil {
			replyContext.RootText = s.plain(root.Content.Message, maxCommentRunes)
		}
	}
	return replyContext
}

func (s *BilibiliService) plain(text string, max int) string {
	text = strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
	runes := []rune(text)
	if len(runes) > max {
		return string(runes[:max])
	}
	return text
}

type CredentialStatus struct {
	UserID    int64      `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

// CredentialStatus reports whether the session cookies are still usable.
func (s *BilibiliService) CredentialStatus(now time.Time) CredentialStatus {
	credentials := s.client.Credentials()
	status := CredentialStatus{
		UserID:  credentials.UserID(),
		Expired: credentials.IsExpired(now),
	}
	if !credentials.ExpiresAt.IsZero() {
		expiresAt := credentials.ExpiresAt
		status.ExpiresAt = &expiresAt
	}
	return status
}

func (s CredentialStatus) String() string {
	if s.ExpiresAt == nil {
		return fmt.Sprintf("user %d, no expiry", s.UserID)
	}
	return fmt.Sprintf("user %d, expires %s", s.UserID, s.ExpiresAt.Format(time.RFC3339))
}
