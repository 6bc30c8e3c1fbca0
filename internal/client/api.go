package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pingme/internal/models"

	"github.com/valyala/fasthttp"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPAPI implements API against the pingme HTTP surface.
type HTTPAPI struct {
	base    string // e.g. http://localhost:3001
	token   string
	client  *fasthttp.Client
	timeout time.Duration
}

func NewHTTPAPI(base, token string) *HTTPAPI {
	return &HTTPAPI{
		base:    base,
		token:   token,
		client:  &fasthttp.Client{},
		timeout: defaultRequestTimeout,
	}
}

// Login authenticates and installs the session token on the client.
func (a *HTTPAPI) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var res models.AuthResponse
	if err := a.do(ctx, fasthttp.MethodPost, "/api/auth/login", req, &res); err != nil {
		return nil, err
	}
	a.token = res.Token
	return &res, nil
}

func (a *HTTPAPI) Users(ctx context.Context) ([]models.RosterEntry, error) {
	var entries []models.RosterEntry
	if err := a.do(ctx, fasthttp.MethodGet, "/api/messages/users", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (a *HTTPAPI) Messages(ctx context.Context, peerID string) ([]models.Message, error) {
	var messages []models.Message
	if err := a.do(ctx, fasthttp.MethodGet, "/api/messages/"+peerID, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (a *HTTPAPI) Send(ctx context.Context, peerID string, req models.SendMessageRequest) (models.Message, error) {
	var msg models.Message
	if err := a.do(ctx, fasthttp.MethodPost, "/api/messages/send/"+peerID, req, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(a.base + path)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}

	deadline := time.Now().Add(a.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := a.client.DoDeadline(req, resp, deadline); err != nil {
		return err
	}

	if code := resp.StatusCode(); code >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, code)
		}
		return fmt.Errorf("%s %s: status %d", method, path, code)
	}

	if out != nil && len(resp.Body()) > 0 {
		return json.Unmarshal(resp.Body(), out)
	}
	return nil
}
