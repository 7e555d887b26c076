package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/truemediaorg/mentionbot/config"
	"github.com/truemediaorg/mentionbot/model"
	"google.golang.org/genai"

	log "github.com/sirupsen/logrus"
)

const maxReplyRunes = 200

type GenAIService struct {
	client       *genai.Client
	model        string
	systemPrompt string
	maxTokens    int32
	temperature  float32
	sanitizer    *bluemonday.Policy
}

func NewGenAIService(ctx context.Context, cfg config.Config, secrets SecretGetter) (*GenAIService, error) {
	apiKey := cfg.GenAI.APIKey
	if apiKey == "" {
		secret, err := ReadSecret[config.GenAISecretData](ctx, secrets, cfg.GenAI.SecretPath)
		if err != nil {
			return nil, err
		}
		apiKey = secret.APIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	systemPrompt := cfg.GenAI.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &GenAIService{
		client:       client,
		model:        cfg.GenAI.Model,
		systemPrompt: systemPrompt,
		maxTokens:    int32(cfg.GenAI.MaxTokens),
		temperature:  float32(cfg.GenAI.Temperature),
		sanitizer:    bluemonday.StrictPolicy(),
	}, nil
}

// GenerateReply asks the model for a reply. An empty string means the model
// had nothing to say.
func (s *GenAIService) GenerateReply(ctx context.Context, req model.GenerationRequest) (string, error) {
	log.WithField("id", req.MentionID).WithField("model", s.model).Debug("calling GenAI")
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(BuildPrompt(req)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(s.systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(s.temperature),
		MaxOutputTokens:   s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return CleanReply(s.sanitizer, resp.Text()), nil
}

// CleanReply turns raw model output into postable plain text: code fences and
// JSON wrappers are removed, markup is stripped and the result is truncated.
func CleanReply(policy *bluemonday.Policy, reply string) string {
	reply = strings.TrimSpace(reply)

	if strings.HasPrefix(reply, "```json") {
		body := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(reply, "```json")), "```")
		var wrapped struct {
			Response *string `json:"response"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err == nil && wrapped.Response != nil {
			reply = strings.TrimSpace(*wrapped.Response)
		}
	}
	if strings.HasPrefix(reply, "```") {
		lines := strings.Split(reply, "\n")
		if len(lines) > 2 {
			reply = strings.Join(lines[1:len(lines)-1], "\n")
		}
		reply = strings.TrimSpace(strings.Trim(reply, "`"))
	}

	reply = strings.TrimSpace(html.UnescapeString(policy.Sanitize(reply)))
	return Truncate(reply, maxReplyRunes)
}

// Truncate limits s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// CannedReplyProducer answers every mention with the same thanks. It stands in
// for the model in test mode when no API key is configured.
type CannedReplyProducer struct{}

func (CannedReplyProducer) GenerateReply(ctx context.Context, req model.GenerationRequest) (string, error) {
	return fmt.Sprintf("谢谢 @%s 的@！", req.AuthorName), nil
}
