package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	parseModeHTML  = "HTML"
)

var (
	// ErrNotConfigured is returned when the client is missing a bot token.
	ErrNotConfigured = errors.New("telegram: bot token not configured")
	// ErrSendFailed wraps Bot API rejections.
	ErrSendFailed = errors.New("telegram: send failed")
)

// Message is a text notification destined for a chat, rendered as HTML.
type Message struct {
	ChatID string
	Text   string
}

// Photo is an image upload with an optional HTML caption.
type Photo struct {
	ChatID   string
	Caption  string
	FileName string
	Data     []byte
}

// Sender is the outbound messaging contract consumed by services.
type Sender interface {
	SendMessage(ctx context.Context, msg Message) error
	SendPhoto(ctx context.Context, photo Photo) error
}

// Client talks to the Telegram Bot API.
type Client struct {
	token   string
	baseURL string
	httpc   *http.Client
}

// ClientOption customises the client.
type ClientOption func(*Client)

// WithBaseURL overrides the API host, used by tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// NewClient builds a Bot API client for the given token.
func NewClient(token string, opts ...ClientOption) *Client {
	client := &Client{
		token:   strings.TrimSpace(token),
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// SendMessage posts an HTML-formatted text message to a chat.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	if c == nil || c.token == "" {
		return ErrNotConfigured
	}
	if msg.ChatID == "" || strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("%w: chat id and text are required", ErrSendFailed)
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    msg.ChatID,
		"text":       msg.Text,
		"parse_mode": parseModeHTML,
	})
	if err != nil {
		return err
	}

	return c.post(ctx, "sendMessage", "application/json", bytes.NewReader(payload))
}

// SendPhoto uploads an image as multipart form data with an HTML caption.
func (c *Client) SendPhoto(ctx context.Context, photo Photo) error {
	if c == nil || c.token == "" {
		return ErrNotConfigured
	}
	if photo.ChatID == "" || len(photo.Data) == 0 {
		return fmt.Errorf("%w: chat id and photo data are required", ErrSendFailed)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("chat_id", photo.ChatID); err != nil {
		return err
	}
	if photo.Caption != "" {
		if err := form.WriteField("caption", photo.Caption); err != nil {
			return err
		}
		if err := form.WriteField("parse_mode", parseModeHTML); err != nil {
			return err
		}
	}

	fileName := photo.FileName
	if fileName == "" {
		fileName = "photo.jpg"
	}
	part, err := form.CreateFormFile("photo", fileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(photo.Data); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	return c.post(ctx, "sendPhoto", form.FormDataContentType(), &body)
}

func (c *Client) post(ctx context.Context, method, contentType string, body io.Reader) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&decoded); err != nil {
		return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}
	if !decoded.OK {
		return fmt.Errorf("%w: %s (code %d)", ErrSendFailed, decoded.Description, decoded.ErrorCode)
	}
	return nil
}
