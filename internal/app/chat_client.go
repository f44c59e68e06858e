package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatClient talks to the backend /chat endpoint. Transport failures and bad
// status codes are classified so the caller can tell them apart; when
// EnableDevFallback is set a classified failure is replaced by a local
// per-language placeholder so the UI stays usable without a backend.
type ChatClient struct {
	BaseURL           string
	EnableDevFallback bool
	HTTP              *http.Client
}

type ChatRequest struct {
	Text        string   `json:"text,omitempty"`
	ImageBase64 string   `json:"image_base64,omitempty"`
	AudioFile   string   `json:"audio_file,omitempty"`
	SessionID   string   `json:"session_id"`
	Language    Language `json:"language"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

type healthResponse struct {
	Status       string `json:"status"`
	N8NConnected bool   `json:"n8n_connected"`
}

// NetworkError is a transport-level failure: the request never produced an
// HTTP status.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("chat request failed: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response; Detail carries the server's message
// when the body had one.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("chat backend returned status %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("chat backend returned status %d", e.Code)
}

func NewChatClient(baseURL string, enableDevFallback bool) *ChatClient {
	return &ChatClient{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		EnableDevFallback: enableDevFallback,
		HTTP:              &http.Client{Timeout: 60 * time.Second},
	}
}

// Send issues one chat request and returns the assistant's response text.
func (c *ChatClient) Send(ctx context.Context, req ChatRequest) (string, error) {
	req.ImageBase64 = CleanBase64(req.ImageBase64)
	req.AudioFile = CleanBase64(req.AudioFile)

	text, err := c.post(ctx, req)
	if err == nil {
		return text, nil
	}
	if c.EnableDevFallback {
		return DevFallbackResponse(req.Language, req.Text), nil
	}
	return "", err
}

func (c *ChatClient) post(ctx context.Context, req ChatRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(bodyBytes, &errResp)
		return "", &StatusError{Code: resp.StatusCode, Detail: errResp.Detail}
	}

	var parsed chatResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", &NetworkError{Err: fmt.Errorf("invalid response body: %w", err)}
	}
	return parsed.Response, nil
}

// Health reports whether the backend (and its AI bridge) is reachable.
func (c *ChatClient) Health(ctx context.Context) (bool, bool) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false, false
	}
	resp, err := c.HTTP.Do(request)
	if err != nil {
		return false, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, false
	}
	var parsed healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return true, false
	}
	return true, parsed.N8NConnected
}
