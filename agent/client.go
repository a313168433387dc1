package agent

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

	"github.com/xiaot623/threads/domain"
)

// sseEvent represents a parsed SSE event.
type sseEvent struct {
	Event string
	Data  string
}

// maxSSELineSize bounds a single SSE line. Assistant replies arrive as
// one data line, so this must comfortably exceed the scanner's 64KB
// default.
const maxSSELineSize = 1 << 20

// Client invokes an external responder over HTTP and streams its SSE
// reply events.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

var _ Responder = (*Client)(nil)

// NewClient creates a responder client for the given endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// respondRequest is the body sent to the responder's /respond endpoint.
type respondRequest struct {
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages"`
}

// Respond calls the responder's /respond endpoint and emits each
// "message" event. The stream ends with a "done" event or EOF.
func (c *Client) Respond(ctx context.Context, sessionID string, conversation []domain.Message, emit EmitFunc) error {
	body, err := json.Marshal(respondRequest{SessionID: sessionID, Messages: conversation})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.endpoint, "/") + "/respond"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Session-ID", sessionID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to invoke responder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("responder returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return c.parseSSE(resp.Body, emit)
}

// parseSSE parses the SSE stream and emits a Reply per "message" event.
func (c *Client) parseSSE(reader io.Reader, emit EmitFunc) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	var event sseEvent

	dispatch := func(event sseEvent) error {
		switch event.Event {
		case "message":
			var reply Reply
			if err := json.Unmarshal([]byte(event.Data), &reply); err != nil {
				return fmt.Errorf("failed to parse message event: %w", err)
			}
			return emit(reply)
		case "done", "":
			return nil
		default:
			// Unknown event types are ignored for forward compatibility.
			return nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := dispatch(event); err != nil {
					return err
				}
				event = sseEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
		// Ignore comments (lines starting with :) and other fields
	}

	if event.Event != "" || event.Data != "" {
		if err := dispatch(event); err != nil {
			return err
		}
	}

	return scanner.Err()
}
