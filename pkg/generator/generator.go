// Package generator fetches event summaries from an OpenAI-compatible chat
// completion API (OpenRouter by default).
package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Prometheus metrics for generator calls.
var (
	generatorRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_generator_requests_total",
		Help: "Total generator requests by outcome",
	}, []string{"outcome"}) // "ok", "empty", "network", "status", "payload"

	generatorRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "history_generator_request_duration_seconds",
		Help:    "Generator request duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	})
)

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is the chat model used for summaries.
	DefaultModel = "deepseek/deepseek-v3.2-exp"

	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 30 * time.Second

	// Placeholder replaces a missing or blank completion.
	Placeholder = "暂无详细信息。"
)

const systemPrompt = "你是中国史专家，输出简体中文的简短文本。"

const userPromptTemplate = `你是一位精通中国历史的专家。请用简体中文为这一年的历史事件提供一个引人入胜的简短总结（约150字）。
用户交互上下文: "%s". 年份: %d.
如果该年份没有特别明确的单一重大事件，请描述当时的时代背景、文化风貌或正在发生的长期历史进程。侧重于文化、政治或军事意义。
请直接输出纯文本，分段落显示，不要使用 Markdown 标题。`

// Config holds the generator configuration.
type Config struct {
	// APIKey authenticates against the upstream (REQUIRED)
	APIKey string

	// BaseURL overrides the API root, e.g. for tests
	BaseURL string

	// Model is the chat model identifier
	Model string

	// Timeout bounds each request
	Timeout time.Duration
}

// DefaultConfig returns the OpenRouter defaults for the given key.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// Client generates summaries through the chat completion API.
type Client struct {
	client *openai.Client
	config Config
	logger zerolog.Logger
}

// New creates a generator client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: log.With().Str("component", "generator").Logger(),
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.config.Model
}

// Messages builds the system and user messages for a year and context.
func Messages(year int, userContext string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptTemplate, userContext, year)},
	}
}

// Generate requests a summary for year. A response without usable content
// yields Placeholder. Failures are returned as *Error.
func (c *Client) Generate(ctx context.Context, year int, userContext string) (string, error) {
	start := time.Now()
	defer func() {
		generatorRequestDuration.Observe(time.Since(start).Seconds())
	}()

	c.logger.Debug().Int("year", year).Str("model", c.config.Model).Msg("Requesting summary")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: Messages(year, userContext),
	})
	if err != nil {
		genErr := classifyError(err)
		generatorRequestsTotal.WithLabelValues(string(genErr.Class)).Inc()
		c.logger.Warn().
			Err(err).
			Int("year", year).
			Str("error_class", string(genErr.Class)).
			Int("status", genErr.StatusCode).
			Msg("Generator request failed")
		return "", genErr
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		generatorRequestsTotal.WithLabelValues("empty").Inc()
		c.logger.Warn().Int("year", year).Msg("Generator returned no content, using placeholder")
		return Placeholder, nil
	}

	generatorRequestsTotal.WithLabelValues("ok").Inc()
	return resp.Choices[0].Message.Content, nil
}
