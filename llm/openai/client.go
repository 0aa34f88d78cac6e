// Package openai adapts the OpenAI chat completions API to the llm.Client
// interface using the sashabaranov/go-openai SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/relaycore/llmrelay/llm"
)

// Client implements llm.Client against the OpenAI API. It also works with
// OpenAI-compatible endpoints when a custom base URL is configured.
type Client struct {
	api   *openai.Client
	model string // Default model when the request doesn't name one
}

// New creates an OpenAI client. baseURL, model, and organization are
// optional; an empty baseURL uses the public endpoint.
func New(apiKey, baseURL, model, organization string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if organization != "" {
		cfg.OrgID = organization
	}

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	chatResp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, convertError(err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, llm.NewServerError("openai: response contained no choices", 0, nil)
	}

	choice := chatResp.Choices[0]
	content := make([]llm.ContentBlock, 0, 1+len(choice.Message.ToolCalls))
	if choice.Message.Content != "" {
		content = append(content, llm.ContentBlock{
			Type: llm.ContentBlockTypeText,
			Text: choice.Message.Content,
		})
	}
	for _, tc := range choice.Message.ToolCalls {
		content = append(content, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: fromToolCall(tc),
		})
	}

	return &llm.Response{
		Content: content,
		Usage: &llm.Usage{
			InputTokens:  int64(chatResp.Usage.PromptTokens),
			OutputTokens: int64(chatResp.Usage.CompletionTokens),
		},
		StopReason: stopReason(choice.FinishReason),
	}, nil
}

// Stream implements llm.Client.Stream.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	chatReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}
	chatReq.Stream = true
	// Without this the final chunk carries no usage counters.
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.api.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, convertError(err)
	}
	return pumpStream(stream), nil
}

func (c *Client) buildRequest(req *llm.Request) (openai.ChatCompletionRequest, error) {
	if req == nil {
		return openai.ChatCompletionRequest{}, llm.NewBadRequestError("openai: request is required", 0, nil)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return openai.ChatCompletionRequest{}, llm.NewBadRequestError("openai: model is required", 0, nil)
	}

	msgs, err := toChatMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, llm.NewBadRequestError(
			fmt.Sprintf("openai: %v", err), 0, err)
	}
	if req.System != "" {
		msgs = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		}}, msgs...)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toChatTools(req.Tools)
		chatReq.ToolChoice = "auto"
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		chatReq.TopP = float32(*req.TopP)
	}
	if req.Seed != nil {
		chatReq.Seed = req.Seed
	}
	if req.User != "" {
		chatReq.User = req.User
	}
	return chatReq, nil
}

func stopReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonLength:
		return "max_tokens"
	case openai.FinishReasonToolCalls:
		return "tool_calls"
	default:
		return "stop"
	}
}

// convertError maps SDK errors to the shared taxonomy by HTTP status.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return llm.AsError(err)
	}

	msg := fmt.Sprintf("openai: %s", apiErr.Message)
	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		// The SDK does not surface the Retry-After header; leave the hint
		// unset and let the backoff policy pick the delay.
		return llm.NewRateLimitError(msg, nil, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return llm.NewAuthError(msg, apiErr.HTTPStatusCode, err)
	case http.StatusRequestTimeout:
		return llm.NewTimeoutError(msg, err)
	default:
		switch llm.ClassifyStatus(apiErr.HTTPStatusCode) {
		case llm.ErrorTypeServer:
			return llm.NewServerError(msg, apiErr.HTTPStatusCode, err)
		case llm.ErrorTypeBadRequest:
			return llm.NewBadRequestError(msg, apiErr.HTTPStatusCode, err)
		default:
			return llm.NewTransportError(msg, err)
		}
	}
}

var _ llm.Client = (*Client)(nil)
