package llm

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/cache"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

const DefaultSystemPrompt = "You help administrators author user provisioning rules. " +
	"A rule matches users by job title and department, optionally narrowed by profile and role, " +
	"and assigns permission sets or permission set groups. Answer briefly."

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int64
	// Cache is optional; nil disables reply caching.
	Cache   cache.Cache
	Options []option.RequestOption
}

// OpenAIAsker answers a single user query with a chat completion.
type OpenAIAsker struct {
	client openai.Client
	config Config
}

func NewOpenAIAsker(cfg Config) *OpenAIAsker {
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.Options...)
	return &OpenAIAsker{
		client: openai.NewClient(opts...),
		config: cfg,
	}
}

func (a *OpenAIAsker) Ask(ctx context.Context, userQuery string) (string, error) {
	logger := composables.UseLogger(ctx)

	cached, err := a.cachedReply(ctx, userQuery)
	if err != nil {
		logger.WithError(err).Warn("assistant cache lookup failed")
	}
	if cached != "" {
		logger.WithField("model", a.config.Model).Debug("replying with cached response")
		return cached, nil
	}

	response, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.config.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(a.config.SystemPrompt),
			openai.UserMessage(userQuery),
		},
		Temperature: openai.Float(a.config.Temperature),
		MaxTokens:   openai.Int(a.config.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get AI response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("no response from AI")
	}

	raw := response.Choices[0].Message.Content
	logger.WithFields(logrus.Fields{
		"model":     a.config.Model,
		"raw_reply": raw,
	}).Debug("AI model output received")

	reply := strings.TrimSpace(thinkTagRegex.ReplaceAllString(raw, ""))
	if reply == "" {
		return "", errors.New("empty response from AI")
	}
	if err := a.saveReply(ctx, userQuery, reply); err != nil {
		logger.WithError(err).Warn("assistant cache write failed")
	}
	return reply, nil
}

type cacheKeyParts struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int64
	Query        string
}

func (a *OpenAIAsker) cacheKey(userQuery string) (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cacheKeyParts{
		Model:        a.config.Model,
		SystemPrompt: a.config.SystemPrompt,
		Temperature:  a.config.Temperature,
		MaxTokens:    a.config.MaxTokens,
		Query:        userQuery,
	}); err != nil {
		return "", err
	}
	hash := md5.Sum(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (a *OpenAIAsker) cachedReply(ctx context.Context, userQuery string) (string, error) {
	if a.config.Cache == nil {
		return "", nil
	}
	key, err := a.cacheKey(userQuery)
	if err != nil {
		return "", err
	}
	result, err := a.config.Cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return result, nil
}

func (a *OpenAIAsker) saveReply(ctx context.Context, userQuery, reply string) error {
	if a.config.Cache == nil {
		return nil
	}
	key, err := a.cacheKey(userQuery)
	if err != nil {
		return err
	}
	return a.config.Cache.Set(ctx, key, reply)
}
