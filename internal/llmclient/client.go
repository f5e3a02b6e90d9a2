// Package llmclient issues chat-completion requests against OpenAI-compatible
// endpoints, either as a single blocking call or as a raw server-sent-event
// frame stream. The client never interprets stream frames; that is the relay's
// job (see internal/service/chat).
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
)

const (
	// CompleteTimeout bounds a blocking completion call.
	CompleteTimeout = 60 * time.Second
	// StreamTimeout bounds an entire streaming call; there is no per-frame
	// deadline.
	StreamTimeout = 120 * time.Second

	completionsPath = "/v1/chat/completions"
	maxErrorBody    = 4096
)

// Message is one entry of the outbound messages array.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessagesFromTurns maps stored turns to provider messages: sender "ai"
// becomes role "assistant", everything else "user".
func MessagesFromTurns(turns []chatModels.Turn) []Message {
	messages := make([]Message, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Sender == chatModels.SenderAssistant {
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: turn.Content})
	}
	return messages
}

// Request is a fully resolved completion request.
type Request struct {
	Endpoint    chatModels.Endpoint
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// StreamLine is one raw line of the upstream stream. Err is set at most once,
// as the final element, when the transport fails mid-stream.
type StreamLine struct {
	Line string
	Err  error
}

type completionBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client issues requests to OpenAI-compatible chat-completion endpoints.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a completion client. The http.Client carries no global
// timeout; each call is bounded by its own context deadline so streaming
// bodies are not cut off by a transport-level timer.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

// NewClientWithHTTP creates a completion client with a caller-supplied
// http.Client, used by tests.
func NewClientWithHTTP(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Complete performs a blocking completion call and returns the first choice's
// message content. Any failure - non-2xx status, undecodable body, transport
// error, timeout - is reported as *domain.UpstreamError carrying the raw
// description.
func (c *Client) Complete(ctx context.Context, req *Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CompleteTimeout)
	defer cancel()

	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", &domain.UpstreamError{Description: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.UpstreamError{Description: statusDescription(resp)}
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &domain.UpstreamError{Description: fmt.Sprintf("decode completion response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &domain.UpstreamError{Description: "completion response has no choices"}
	}

	return parsed.Choices[0].Message.Content, nil
}

// Stream performs a streaming completion call and returns a lazy, finite,
// non-restartable sequence of raw frame lines. Empty lines are dropped; frame
// content is not interpreted. The returned cancel function abandons the
// upstream call; the channel is closed once the body is drained, the context
// expires, or the transport fails (in which case the last element carries the
// error).
func (c *Client) Stream(ctx context.Context, req *Request) (<-chan StreamLine, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, StreamTimeout)

	resp, err := c.post(ctx, req, true)
	if err != nil {
		cancel()
		return nil, nil, &domain.UpstreamError{Description: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		desc := statusDescription(resp)
		resp.Body.Close()
		cancel()
		return nil, nil, &domain.UpstreamError{Description: desc}
	}

	lines := make(chan StreamLine)
	go func() {
		defer close(lines)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- StreamLine{Line: line}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- StreamLine{Err: &domain.UpstreamError{Description: err.Error()}}:
			case <-ctx.Done():
			}
		}
	}()

	return lines, cancel, nil
}

func (c *Client) post(ctx context.Context, req *Request, stream bool) (*http.Response, error) {
	body := completionBody{
		Model:       req.Endpoint.ModelName,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(req.Endpoint.APIHost, "/") + completionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Endpoint.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}

	return resp, nil
}

func statusDescription(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Sprintf("upstream returned status %d", resp.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", resp.StatusCode, msg)
}
