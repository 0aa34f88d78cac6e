// Package ollama adapts a local Ollama server to the llm.Client interface
// using the ollama/api client.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/relaycore/llmrelay/llm"
)

// Client implements llm.Client against an Ollama server.
type Client struct {
	api   *api.Client
	model string // Default model when the request doesn't name one
}

// New creates an Ollama client. An empty host falls back to the
// environment (OLLAMA_HOST, default http://localhost:11434).
func New(host, model string) (*Client, error) {
	var apiClient *api.Client
	if host != "" {
		baseURL, err := parseHost(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host: %w", err)
		}
		apiClient = api.NewClient(baseURL, http.DefaultClient)
	} else {
		var err error
		apiClient, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
	}

	return &Client{
		api:   apiClient,
		model: model,
	}, nil
}

func parseHost(host string) (*url.URL, error) {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Synchronous implements llm.Client.Synchronous.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}

	var final api.ChatResponse
	err = c.api.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return nil, convertError(err)
	}

	content := make([]llm.ContentBlock, 0, 1+len(final.Message.ToolCalls))
	if final.Message.Content != "" {
		content = append(content, llm.ContentBlock{
			Type: llm.ContentBlockTypeText,
			Text: final.Message.Content,
		})
	}
	for _, tc := range final.Message.ToolCalls {
		content = append(content, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: fromToolCall(tc),
		})
	}

	return &llm.Response{
		Content:    content,
		Usage:      usageFrom(&final),
		StopReason: doneReason(&final),
	}, nil
}

// Stream implements llm.Client.Stream.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	chatReq, err := c.buildRequest(req, true)
	if err != nil {
		return nil, err
	}
	return pumpStream(ctx, c.api, chatReq), nil
}

func (c *Client) buildRequest(req *llm.Request, stream bool) (*api.ChatRequest, error) {
	if req == nil {
		return nil, llm.NewBadRequestError("ollama: request is required", 0, nil)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, llm.NewBadRequestError("ollama: model is required", 0, nil)
	}

	msgs := toChatMessages(req.Messages)
	if req.System != "" {
		msgs = append([]api.Message{{Role: "system", Content: req.System}}, msgs...)
	}

	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
		Options:  make(map[string]interface{}),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toChatTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		chatReq.Options["top_p"] = *req.TopP
	}
	if req.Seed != nil {
		chatReq.Options["seed"] = *req.Seed
	}
	return chatReq, nil
}

func usageFrom(resp *api.ChatResponse) *llm.Usage {
	return &llm.Usage{
		InputTokens:  int64(resp.Metrics.PromptEvalCount),
		OutputTokens: int64(resp.Metrics.EvalCount),
	}
}

func doneReason(resp *api.ChatResponse) string {
	if resp.DoneReason != "" {
		return resp.DoneReason
	}
	return "stop"
}

// convertError maps API errors to the shared taxonomy. A refused
// connection to the local server classifies as transport, which keeps it
// retryable while the server starts up.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var statusErr api.StatusError
	if !errors.As(err, &statusErr) {
		return llm.AsError(err)
	}

	msg := fmt.Sprintf("ollama: %s", statusErr.Error())
	switch llm.ClassifyStatus(statusErr.StatusCode) {
	case llm.ErrorTypeRateLimited:
		return llm.NewRateLimitError(msg, nil, err)
	case llm.ErrorTypeAuth:
		return llm.NewAuthError(msg, statusErr.StatusCode, err)
	case llm.ErrorTypeTimeout:
		return llm.NewTimeoutError(msg, err)
	case llm.ErrorTypeServer:
		return llm.NewServerError(msg, statusErr.StatusCode, err)
	case llm.ErrorTypeBadRequest:
		return llm.NewBadRequestError(msg, statusErr.StatusCode, err)
	default:
		return llm.NewTransportError(msg, err)
	}
}

var _ llm.Client = (*Client)(nil)
