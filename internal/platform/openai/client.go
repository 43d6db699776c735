package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

// ErrNoStructuredResult is returned (wrapped) for every generation failure:
// transport errors, refusals, empty or unparseable output.
var ErrNoStructuredResult = errors.New("generator returned no structured result")

// Generator is the text-generation collaborator. It fills out with a result
// conforming to req.Schema or returns an error wrapping ErrNoStructuredResult.
type Generator interface {
	Generate(ctx context.Context, req Request, out any) error
}

type Request struct {
	System     string
	Context    any // marshalled to JSON and sent as the user message
	SchemaName string
	Schema     map[string]any
	// Tools the model may call before answering, at most MaxToolSteps rounds.
	Tools        []Tool
	MaxToolSteps int
}

type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Invoke      func(ctx context.Context, args json.RawMessage) (string, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	RPS         float64
	Burst       int
	MaxRetries  int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type client struct {
	log         *logger.Logger
	api         *goopenai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	maxRetries  int
	backoff     time.Duration
}

func NewClient(log *logger.Logger, cfg Config) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OPENAI_API_KEY required")
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		oc.HTTPClient = &http.Client{Timeout: timeout}
	}
	model := cfg.Model
	if model == "" {
		model = goopenai.GPT4oMini
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &client{
		log:         log.With("client", "OpenAIGenerator", "model", model),
		api:         goopenai.NewClientWithConfig(oc),
		model:       model,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries:  retries,
		backoff:     time.Second,
	}, nil
}

func (c *client) Generate(ctx context.Context, req Request, out any) (err error) {
	if req.SchemaName == "" || req.Schema == nil {
		return fmt.Errorf("%w: schema required", ErrNoStructuredResult)
	}
	ctx, span := observability.StartSpan(ctx, "generator.generate",
		attribute.String("schema", req.SchemaName),
		attribute.Int("tools", len(req.Tools)),
	)
	start := time.Now()
	var usage goopenai.Usage
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.Current().ObserveLLMRequest(c.model, req.SchemaName, status, time.Since(start), usage.PromptTokens, usage.CompletionTokens)
		span.End()
	}()

	payload, err := json.Marshal(req.Context)
	if err != nil {
		return fmt.Errorf("%w: marshal context: %v", ErrNoStructuredResult, err)
	}
	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		return fmt.Errorf("%w: marshal schema: %v", ErrNoStructuredResult, err)
	}
	format := &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
			Name:   req.SchemaName,
			Schema: json.RawMessage(schemaJSON),
			Strict: true,
		},
	}
	tools, byName := toolDefinitions(req.Tools)
	messages := []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
		{Role: goopenai.ChatMessageRoleUser, Content: string(payload)},
	}

	for step := 0; ; step++ {
		chatReq := goopenai.ChatCompletionRequest{
			Model:          c.model,
			Messages:       messages,
			ResponseFormat: format,
			Temperature:    c.temperature,
		}
		toolsOpen := len(tools) > 0 && step < req.MaxToolSteps
		if toolsOpen {
			chatReq.Tools = tools
		}
		resp, err := c.create(ctx, chatReq)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoStructuredResult, err)
		}
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: empty choices", ErrNoStructuredResult)
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) > 0 && toolsOpen {
			messages = append(messages, msg)
			for _, call := range msg.ToolCalls {
				messages = append(messages, goopenai.ChatCompletionMessage{
					Role:       goopenai.ChatMessageRoleTool,
					ToolCallID: call.ID,
					Content:    c.invokeTool(ctx, byName, call),
				})
			}
			continue
		}

		if msg.Refusal != "" {
			return fmt.Errorf("%w: refused: %s", ErrNoStructuredResult, msg.Refusal)
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			return fmt.Errorf("%w: empty content", ErrNoStructuredResult)
		}
		if err := json.Unmarshal([]byte(content), out); err != nil {
			return fmt.Errorf("%w: decode: %v", ErrNoStructuredResult, err)
		}
		return nil
	}
}

func toolDefinitions(in []Tool) ([]goopenai.Tool, map[string]Tool) {
	if len(in) == 0 {
		return nil, nil
	}
	defs := make([]goopenai.Tool, 0, len(in))
	byName := make(map[string]Tool, len(in))
	for _, t := range in {
		defs = append(defs, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
		byName[t.Name] = t
	}
	return defs, byName
}

// invokeTool never fails the generation; tool errors are reported back to the
// model as the tool result.
func (c *client) invokeTool(ctx context.Context, byName map[string]Tool, call goopenai.ToolCall) string {
	tool, ok := byName[call.Function.Name]
	if !ok || tool.Invoke == nil {
		observability.Current().ObserveToolCall(call.Function.Name, "unknown")
		return `{"error":"unknown tool"}`
	}
	result, err := tool.Invoke(ctx, json.RawMessage(call.Function.Arguments))
	if err != nil {
		c.log.Warn("Tool invocation failed", "tool", tool.Name, "error", err)
		observability.Current().ObserveToolCall(tool.Name, "error")
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(b)
	}
	observability.Current().ObserveToolCall(tool.Name, "ok")
	return result
}

func (c *client) create(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return goopenai.ChatCompletionResponse{}, err
		}
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) || attempt >= c.maxRetries {
			return resp, err
		}
		c.log.Warn("OpenAI request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func isRetryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
