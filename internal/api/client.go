package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"educahub/internal/config"
	"educahub/internal/hub"
	"educahub/internal/model"
)

// TokenFunc returns the bearer token to send, or "" for anonymous requests.
type TokenFunc func() string

// Client talks to the EducaHub REST backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenFunc
	ids        hub.IDGenerator
}

var _ hub.API = (*Client)(nil)

// NewClient creates a backend client. token may be nil.
func NewClient(httpClient *http.Client, baseURL string, token TokenFunc, ids hub.IDGenerator) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      token,
		ids:        ids,
	}
}

// NewHTTPClient builds the transport used against the backend.
func NewHTTPClient(cfg config.APIConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context, userID model.ID) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, "fetch profile", http.MethodGet, "/auth/profile/"+escape(userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, userID model.ID, update model.UserUpdate) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, "update user", http.MethodPut, "/users/"+escape(userID), update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	if err := c.do(ctx, "list categories", http.MethodGet, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Posts(ctx context.Context) ([]model.Post, error) {
	var out []model.Post
	if err := c.do(ctx, "list posts", http.MethodGet, "/posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UserPosts(ctx context.Context, userID model.ID) ([]model.Post, error) {
	var out []model.Post
	if err := c.do(ctx, "list user posts", http.MethodGet, "/posts/user/"+escape(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePost(ctx context.Context, payload model.PostPayload) (*model.Post, error) {
	var out model.Post
	if err := c.do(ctx, "create post", http.MethodPost, "/posts", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePost(ctx context.Context, id model.ID, payload model.PostPayload) (*model.Post, error) {
	var out model.Post
	if err := c.do(ctx, "update post", http.MethodPut, "/posts/"+escape(id), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, id model.ID) error {
	return c.do(ctx, "delete post", http.MethodDelete, "/posts/"+escape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ids != nil {
		req.Header.Set("X-Request-ID", c.ids.New())
	}
	if token := strings.TrimSpace(c.token()); token != "" {
		if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = "Bearer " + token
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &hub.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%s: empty response body", op)
			}
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
		return nil
	}

	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb)
	msg := strings.TrimSpace(eb.Message)
	if msg == "" {
		msg = strings.TrimSpace(eb.Error)
	}
	return &hub.APIError{Status: resp.StatusCode, Message: msg}
}

func escape(id model.ID) string {
	return url.PathEscape(string(id))
}
