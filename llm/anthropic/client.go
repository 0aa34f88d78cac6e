// Package anthropic adapts the Anthropic Messages API to the llm.Client
// interface using the official Go SDK.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/relaycore/llmrelay/llm"
)

// The Messages API requires an explicit output ceiling on every request.
const defaultMaxTokens = 4096

// Client implements llm.Client against the Anthropic API.
type Client struct {
	api    *anthropic.Client
	logger zerolog.Logger
}

// New creates an Anthropic client with the given API key.
func New(apiKey string, logger zerolog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	api := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		api:    &api,
		logger: logger,
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	message, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return nil, convertError(err)
	}

	content := make([]llm.ContentBlock, 0, len(message.Content))
	for _, blockUnion := range message.Content {
		switch block := blockUnion.AsAny().(type) {
		case anthropic.TextBlock:
			content = append(content, llm.ContentBlock{
				Type: llm.ContentBlockTypeText,
				Text: block.Text,
			})
		case anthropic.ToolUseBlock:
			content = append(content, llm.ContentBlock{
				Type:    llm.ContentBlockTypeToolUse,
				ToolUse: fromToolUseBlock(block),
			})
		}
	}

	usage := &llm.Usage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}
	c.logCacheStats(usage)

	return &llm.Response{
		Content:    content,
		Usage:      usage,
		StopReason: string(message.StopReason),
	}, nil
}

// Stream implements llm.Client.Stream.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := c.api.Messages.NewStreaming(ctx, params)
	return pumpStream(stream), nil
}

func buildParams(req *llm.Request) (anthropic.MessageNewParams, error) {
	if req == nil {
		return anthropic.MessageNewParams{}, llm.NewBadRequestError("anthropic: request is required", 0, nil)
	}
	if req.Model == "" {
		return anthropic.MessageNewParams{}, llm.NewBadRequestError("anthropic: model is required", 0, nil)
	}

	msgs, err := toMessageParams(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, llm.NewBadRequestError(
			fmt.Sprintf("anthropic: %v", err), 0, err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if req.System != "" {
		// Cache control on the system block caches the tools+system prefix
		// across requests with the same preamble.
		params.System = []anthropic.TextBlockParam{
			{Text: req.System, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = toToolParams(req.Tools)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if req.User != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(req.User)}
	}
	return params, nil
}

func (c *Client) logCacheStats(usage *llm.Usage) {
	if usage.CacheCreationInputTokens == 0 && usage.CacheReadInputTokens == 0 {
		return
	}
	c.logger.Debug().
		Int64("input_tokens", usage.InputTokens).
		Int64("cache_creation_tokens", usage.CacheCreationInputTokens).
		Int64("cache_read_tokens", usage.CacheReadInputTokens).
		Msg("Prompt cache stats")
}

func fromToolUseBlock(block anthropic.ToolUseBlock) *llm.ToolUseBlock {
	input := make(map[string]interface{})
	if len(block.Input) > 0 {
		_ = json.Unmarshal(block.Input, &input)
	}
	return &llm.ToolUseBlock{
		ID:        block.ID,
		Name:      block.Name,
		Arguments: string(block.Input),
		Input:     input,
	}
}

// convertError maps SDK errors to the shared taxonomy. A Retry-After
// header on a 429 response seeds the backoff hint.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return llm.AsError(err)
	}

	msg := fmt.Sprintf("anthropic: %s", apiErr.Error())
	switch llm.ClassifyStatus(apiErr.StatusCode) {
	case llm.ErrorTypeRateLimited:
		return llm.NewRateLimitError(msg, retryAfterHint(apiErr.Response), err)
	case llm.ErrorTypeAuth:
		return llm.NewAuthError(msg, apiErr.StatusCode, err)
	case llm.ErrorTypeTimeout:
		return llm.NewTimeoutError(msg, err)
	case llm.ErrorTypeServer:
		return llm.NewServerError(msg, apiErr.StatusCode, err)
	case llm.ErrorTypeBadRequest:
		return llm.NewBadRequestError(msg, apiErr.StatusCode, err)
	default:
		return llm.NewTransportError(msg, err)
	}
}

func retryAfterHint(resp *http.Response) *time.Duration {
	if resp == nil {
		return nil
	}
	raw := resp.Header.Get("retry-after")
	if raw == "" {
		return nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}

var _ llm.Client = (*Client)(nil)
