// Package backend is the HTTP client of the account backend. Every method
// makes exactly one request and never retries.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/silicabot/internal/models"
)

// AdminKeyHeader carries the shared admin secret.
const AdminKeyHeader = "X-Admin-Key"

const (
	opCheckAccount   = "check-account"
	opRegister       = "register"
	opActivate       = "activate"
	opAddDuration    = "add-duration"
	opRemoveDuration = "remove-duration"
	opResetAccount   = "reset-account"
	opResetHWID      = "reset-hwid"
	opUserInfo       = "user-info"
	opListUsers      = "list-users"
	opSetNote        = "set-note"
	opResetAllUsers  = "reset-all-users"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to the account backend.
type Client struct {
	baseURL  string
	adminKey string
	http     *http.Client
}

// New creates a Client. A nil httpClient gets a client with the given timeout.
func New(baseURL, adminKey string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		adminKey: adminKey,
		http:     httpClient,
	}
}

// envelope is the part of every backend response the client inspects.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	admin  bool
}

// do performs cl and, on success, decodes the body into out when out is non-nil.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return &Error{Op: cl.op, Message: fallback(cl.op), Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return &Error{Op: cl.op, Message: fallback(cl.op), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.admin {
		req.Header.Set(AdminKeyHeader, c.adminKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: cl.op, Message: fallback(cl.op), Err: fmt.Errorf("%s %s failed: %w", cl.method, cl.path, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var env envelope
		msg := fallback(cl.op)
		if json.Unmarshal(data, &env) == nil && strings.TrimSpace(env.Error) != "" {
			msg = env.Error
		}
		return &Error{
			Op:         cl.op,
			StatusCode: resp.StatusCode,
			Message:    msg,
			Err:        fmt.Errorf("server error: %s", strings.TrimSpace(string(data))),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: cl.op, StatusCode: resp.StatusCode, Message: fallback(cl.op), Err: fmt.Errorf("read response: %w", err)}
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &Error{Op: cl.op, StatusCode: resp.StatusCode, Message: fallback(cl.op), Err: fmt.Errorf("invalid response: %w", err)}
	}
	if !env.Success {
		msg := fallback(cl.op)
		if env.Error != "" {
			msg = env.Error
		}
		return &Error{Op: cl.op, StatusCode: resp.StatusCode, Message: msg, Err: errors.New("success=false")}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Op: cl.op, StatusCode: resp.StatusCode, Message: fallback(cl.op), Err: fmt.Errorf("invalid response: %w", err)}
		}
	}
	return nil
}

// CheckAccountExists reports whether a platform user already owns an account.
func (c *Client) CheckAccountExists(ctx context.Context, discordID string) (bool, error) {
	var out struct {
		HasAccount bool `json:"has_account"`
	}
	err := c.do(ctx, call{
		op:     opCheckAccount,
		method: http.MethodGet,
		path:   "/auth/check-discord",
		query:  url.Values{"discord_id": {discordID}},
	}, &out)
	return out.HasAccount, err
}

// Register creates an inactive account linked to discordID and returns its
// one-time credentials.
func (c *Client) Register(ctx context.Context, email, discordID string) (*models.Credential, error) {
	var out models.Credential
	err := c.do(ctx, call{
		op:     opRegister,
		method: http.MethodPost,
		path:   "/auth/register",
		body: map[string]any{
			"email":         email,
			"is_active":     false,
			"duration_days": 0,
			"discord_id":    discordID,
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	out.Email = email
	return &out, nil
}

// Activate enables an account for days and returns the linked platform id.
func (c *Client) Activate(ctx context.Context, email string, days int) (string, error) {
	var out struct {
		DiscordID string `json:"discord_id"`
	}
	err := c.do(ctx, call{
		op:     opActivate,
		method: http.MethodPost,
		path:   "/auth/activate",
		body:   map[string]any{"email": email, "duration_days": days},
		admin:  true,
	}, &out)
	return out.DiscordID, err
}

// AddDuration extends a subscription by days.
func (c *Client) AddDuration(ctx context.Context, email string, days int) (*models.DurationChange, error) {
	return c.adjust(ctx, opAddDuration, "/auth/add-duration", email, days)
}

// RemoveDuration shortens a subscription by days.
func (c *Client) RemoveDuration(ctx context.Context, email string, days int) (*models.DurationChange, error) {
	return c.adjust(ctx, opRemoveDuration, "/auth/remove-duration", email, days)
}

func (c *Client) adjust(ctx context.Context, op, path, email string, days int) (*models.DurationChange, error) {
	var out models.DurationChange
	err := c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   path,
		body:   map[string]any{"email": email, "days": days},
		admin:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetAccount deletes an account so its owner can register again.
// It returns the platform id the account was linked to.
func (c *Client) ResetAccount(ctx context.Context, email string) (string, error) {
	var out struct {
		DiscordID string `json:"discord_id"`
	}
	err := c.do(ctx, call{
		op:     opResetAccount,
		method: http.MethodPost,
		path:   "/auth/reset-account",
		body:   map[string]any{"email": email},
		admin:  true,
	}, &out)
	return out.DiscordID, err
}

// ResetHWID unbinds an account from its device.
func (c *Client) ResetHWID(ctx context.Context, email string) error {
	return c.do(ctx, call{
		op:     opResetHWID,
		method: http.MethodPost,
		path:   "/auth/reset-hwid",
		body:   map[string]any{"email": email},
		admin:  true,
	}, nil)
}

// UserInfo fetches the detailed view of one account.
func (c *Client) UserInfo(ctx context.Context, email string) (*models.UserInfo, error) {
	var out struct {
		User models.UserInfo `json:"user"`
	}
	err := c.do(ctx, call{
		op:     opUserInfo,
		method: http.MethodGet,
		path:   "/auth/user-info",
		query:  url.Values{"email": {email}},
		admin:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListUsers returns every account in backend order.
func (c *Client) ListUsers(ctx context.Context) ([]models.AccountSummary, error) {
	var out struct {
		Users []models.AccountSummary `json:"users"`
	}
	err := c.do(ctx, call{
		op:     opListUsers,
		method: http.MethodGet,
		path:   "/auth/users",
		admin:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Users, nil
}

// SetNote replaces the free-text note on an account.
func (c *Client) SetNote(ctx context.Context, email, note string) error {
	return c.do(ctx, call{
		op:     opSetNote,
		method: http.MethodPost,
		path:   "/auth/set-note",
		body:   map[string]any{"email": email, "note": note},
		admin:  true,
	}, nil)
}

// ResetAllUsers deactivates every account and returns how many were touched.
func (c *Client) ResetAllUsers(ctx context.Context) (int, error) {
	var out struct {
		AffectedUsers int `json:"affected_users"`
	}
	err := c.do(ctx, call{
		op:     opResetAllUsers,
		method: http.MethodPost,
		path:   "/auth/reset-all-users",
		body:   map[string]any{},
		admin:  true,
	}, &out)
	return out.AffectedUsers, err
}
