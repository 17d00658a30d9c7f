package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Client provides REST API access to the Chattr server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new REST API client.
// baseURL should be the base URL of the API, e.g., "https://host/api/v1".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetToken sets the JWT token for authenticated requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// MyChats returns the authenticated user's chat list.
func (c *Client) MyChats(ctx context.Context) ([]ChatInfo, error) {
	var resp ChatsResponse
	if err := c.get(ctx, "/chat/my", &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// ChatDetails returns one chat's metadata. With populate set the member
// list carries full user descriptors instead of bare ids; rooms need
// the populated form to scope join/leave and typing broadcasts.
func (c *Client) ChatDetails(ctx context.Context, chatID string, populate bool) (*ChatInfo, error) {
	path := "/chat/" + url.PathEscape(chatID)
	if populate {
		path += "?populate=true"
	}
	var resp ChatDetailsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp.Chat, nil
}

// GetMessages retrieves one history page for a chat. Pages are 1-based
// and ordered newest to oldest; an empty page means history is
// exhausted.
func (c *Client) GetMessages(ctx context.Context, chatID string, page int) (*MessagesResponse, error) {
	path := fmt.Sprintf("/chat/message/%s?page=%d", url.PathEscape(chatID), page)
	var resp MessagesResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadFile is one attachment to send.
type UploadFile struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// SendAttachments uploads up to five files as one message. The
// persisted message arrives over the event channel as NEW_MESSAGE.
func (c *Client) SendAttachments(ctx context.Context, chatID string, files []UploadFile) (*SendAttachmentsResponse, error) {
	if len(files) == 0 || len(files) > 5 {
		return nil, fmt.Errorf("attachments: need 1-5 files, got %d", len(files))
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chatId", chatID); err != nil {
		return nil, fmt.Errorf("write field: %w", err)
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/message", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	var resp SendAttachmentsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Helper methods

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	return c.do(req, dest)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("api error (status %d): %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("http error: %s (status %d)", string(body), resp.StatusCode)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
