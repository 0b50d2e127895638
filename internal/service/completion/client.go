package completion

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/service/upstream"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4-turbo-preview"
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.3

	sseDataPrefix = "data: "
	sseDone       = "[DONE]"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	api         *upstream.Client
	log         *logger.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel sets model name, max tokens and temperature. An empty model or
// non-positive maxTokens keeps the default; a temperature of 0 is kept, a
// negative one is ignored.
func WithModel(model string, maxTokens int, temperature float32) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
		if temperature >= 0 {
			c.temperature = temperature
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a client over api, which must be configured for the completion service.
func New(api *upstream.Client, opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		api:         api,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) request(prompt, systemPrompt string, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	// go-openai omits a zero temperature, which the API reads as 1.
	temperature := c.temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
	if !stream {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return req
}

func (c *Client) endpoint() string { return c.baseURL + "/chat/completions" }

// Complete sends a JSON-object constrained completion. A reply that is not a
// JSON object comes back as {"raw_content": text} instead of an error.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string) (*models.Completion, error) {
	var resp openai.ChatCompletionResponse
	err := c.api.Do(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.endpoint(),
		Body:   c.request(prompt, systemPrompt, false),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errs.NewExternalAPIError(errs.ServiceCompletion, "response has no choices", 0, nil)
	}

	text := resp.Choices[0].Message.Content
	content, perr := ParseContent(text)
	if perr != nil {
		c.log.Warn("completion content is not a JSON object",
			logger.Int("length", len(text)),
			logger.Error(perr),
		)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &models.Completion{
		Content: content,
		Usage: models.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model: model,
	}, nil
}

// ParseContent decodes text as a JSON object, falling back to raw content.
// The returned error only describes why the fallback was used.
func ParseContent(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return map[string]any{models.RawContentKey: text}, err
	}
	if obj == nil {
		return map[string]any{models.RawContentKey: text}, errors.New("content is null")
	}
	return obj, nil
}

// StreamComplete opens a fresh streaming completion and yields content
// fragments until the terminator or end of stream. Malformed chunks are skipped.
// The error channel receives at most one error. Both channels are closed on return.
func (c *Client) StreamComplete(ctx context.Context, prompt, systemPrompt string) (<-chan string, <-chan error) {
	tokens := make(chan string, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(tokens)
		defer close(errc)

		resp, err := c.api.Open(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     c.endpoint(),
			Headers: map[string]string{"Accept": "text/event-stream"},
			Body:    c.request(prompt, systemPrompt, true),
		})
		if err != nil {
			errc <- err
			return
		}
		defer resp.Body.Close()

		if err := readEvents(ctx, resp.Body, tokens); err != nil {
			c.log.Error("completion stream failed", logger.Error(err))
			errc <- errs.NewExternalAPIError(errs.ServiceCompletion, err.Error(), 0, err)
		}
	}()

	return tokens, errc
}

func readEvents(ctx context.Context, r io.Reader, out chan<- string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := strings.TrimPrefix(line, sseDataPrefix)
		if data == sseDone {
			return nil
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		select {
		case out <- chunk.Choices[0].Delta.Content:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
