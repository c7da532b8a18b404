package thread

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the marketplace API. All responses share the envelope
// {"success": bool, <data>, "message"?}; a transport-level 2xx with
// success=false is still an error.
type Client struct {
	baseURL   string
	sessionID string
	httpc     *http.Client
}

func NewClient(baseURL, sessionID string) *Client {
	return &Client{
		baseURL:   trimSlash(baseURL),
		sessionID: sessionID,
		httpc:     &http.Client{Timeout: 30 * time.Second},
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// APIError is a server-reported failure (success=false or non-2xx status).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("api: request failed (status %d)", e.Status)
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// do executes a JSON request and returns the raw response body after
// checking the envelope.
func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	req.Header.Set("X-Session-Id", c.sessionID)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: "invalid response"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	return raw, nil
}

// Thread returns the confirmed message list for a peer, plus the raw JSON of
// the list itself. The reconciler compares raw payloads across polls to skip
// no-op refreshes.
func (c *Client) Thread(ctx context.Context, peerID string, msgType MessageType) ([]Message, []byte, error) {
	path := "/api/conversations/" + url.PathEscape(peerID) + "/messages?type=" + string(msgType)
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, err
	}
	var out struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, nil, fmt.Errorf("decode thread: %w", err)
	}
	var messages []Message
	if len(out.Messages) > 0 {
		if err := json.Unmarshal(out.Messages, &messages); err != nil {
			return nil, nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	return messages, out.Messages, nil
}

// SendRequest is the body of POST /api/messages.
type SendRequest struct {
	ReceiverID   string         `json:"receiver_id"`
	Content      string         `json:"content"`
	Type         MessageType    `json:"type"`
	Attachments  AttachmentList `json:"attachments,omitempty"`
	ReplyTo      *ReplyRef      `json:"reply_to,omitempty"`
	RelatedJobID *string        `json:"related_job_id,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*Message, error) {
	raw, err := c.do(ctx, http.MethodPost, "/api/messages", req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Message *Message `json:"message"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if out.Message == nil {
		return nil, errors.New("decode message: response has no message field")
	}
	return out.Message, nil
}

// React appends an emoji and returns the canonical reaction list.
func (c *Client) React(ctx context.Context, messageID, emoji string) ([]string, error) {
	path := "/api/messages/" + url.PathEscape(messageID) + "/reactions"
	raw, err := c.do(ctx, http.MethodPatch, path, map[string]string{"emoji": emoji})
	if err != nil {
		return nil, err
	}
	var out struct {
		Reactions []string `json:"reactions"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	return out.Reactions, nil
}

func (c *Client) DeleteMessage(ctx context.Context, peerID, messageID string) error {
	path := "/api/conversations/" + url.PathEscape(peerID) + "/messages/" + url.PathEscape(messageID)
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// File is a pending attachment upload.
type File struct {
	Name   string
	Folder string
	Reader io.Reader
}

// Upload pushes one file and returns the resulting attachment metadata.
func (c *Client) Upload(ctx context.Context, f File) (*Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f.Reader); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if f.Folder != "" {
		if err := mw.WriteField("folder", f.Folder); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/files/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	raw, err := c.send(req)
	if err != nil {
		return nil, err
	}
	var out struct {
		URL         string `json:"url"`
		FileName    string `json:"file_name"`
		FileSize    int64  `json:"file_size"`
		ContentType string `json:"content_type"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}
	return &Attachment{
		URL:         out.URL,
		Name:        out.FileName,
		ContentType: out.ContentType,
		Size:        out.FileSize,
	}, nil
}

// Conversations returns the derived conversation list for one context tab.
func (c *Client) Conversations(ctx context.Context, msgType MessageType) ([]Conversation, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/conversations?type="+string(msgType), nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out.Conversations, nil
}

// UnreadTotal returns the badge counter across all conversations.
func (c *Client) UnreadTotal(ctx context.Context) (int, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/conversations/unread", nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Unread int `json:"unread"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("decode unread: %w", err)
	}
	return out.Unread, nil
}

// PollInterval asks the server how often threads should be refreshed.
func (c *Client) PollInterval(ctx context.Context) (time.Duration, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/config/poll", nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Config struct {
			PollIntervalSeconds int `json:"poll_interval_seconds"`
		} `json:"config"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("decode config: %w", err)
	}
	if out.Config.PollIntervalSeconds <= 0 {
		return 5 * time.Second, nil
	}
	return time.Duration(out.Config.PollIntervalSeconds) * time.Second, nil
}
