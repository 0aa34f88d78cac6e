// Package llm provides a provider-neutral abstraction layer for Large Language Model (LLM) APIs.
//
// This package defines the common types, interfaces, and utilities that let the
// rest of the module work with multiple LLM providers (Anthropic, OpenAI, Ollama)
// without being coupled to any specific provider's SDK.
//
// # Core Concepts
//
//  1. Messages: the Message type represents a conversation message with a role
//     (user, assistant, system) and content blocks (text, tool use, tool results).
//
//  2. Requests and Responses: Request carries the ordered message list, optional
//     tool schemas, and generation parameters; Response carries content blocks,
//     token usage, and the stop reason. Requests are immutable once constructed.
//
//  3. Client Interface: the Client interface provides Synchronous() for
//     blocking-complete calls and Stream() for streaming calls. Implementations
//     handle provider-specific details and live in the subpackages llm/openai,
//     llm/anthropic, and llm/ollama.
//
//  4. Streaming: a streaming response is a sequence of StreamEvent chunks. The
//     StreamAssembler reconstructs it incrementally: text fragments pass through
//     immediately, tool-call fragments accumulate per call ID and surface only as
//     complete ToolCall records when the terminal marker arrives.
//
//  5. Errors: the Error type carries a closed classification taxonomy
//     (ErrorType) that decides retryability. Classify maps arbitrary failures
//     into the taxonomy; provider adapters convert SDK errors so no raw
//     transport error crosses the package boundary.
//
// # Extension Points
//
// To add a new LLM provider:
//  1. Implement the Client interface
//  2. Translate between provider-specific types and llm package types
//  3. Convert provider-specific errors into classified *Error values
//  4. Emit StreamEvent chunks from the provider's native stream (the
//     EventBuffer helper bridges callback- or iterator-style SDK streams)
package llm
