package precog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// HeaderHMACKey заголовок с ключом сессии
const HeaderHMACKey = "HMAC_Key"

// APIError ответ API с неуспешным статусом
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d - %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status of an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client клиент PRECOG HTTP API
type Client struct {
	http   *resty.Client
	tokens oauth2.TokenSource
}

// NewClient создаёт клиента. baseURL указывается без суффикса /api.
// tokens может быть nil, тогда доступны только методы без авторизации.
func NewClient(baseURL string, tokens oauth2.TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/api").
		SetTimeout(timeout).
		SetHeader("Accept", "*/*")

	return &Client{
		http:   httpClient,
		tokens: tokens,
	}
}

// SetTokenSource заменяет источник ключа (используется при создании сессии после клиента)
func (c *Client) SetTokenSource(ts oauth2.TokenSource) {
	c.tokens = ts
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// authorized возвращает запрос с заголовком HMAC_Key
func (c *Client) authorized(ctx context.Context) (*resty.Request, error) {
	if c.tokens == nil {
		return nil, errors.New("no token source")
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	return c.request(ctx).SetHeader(HeaderHMACKey, tok.AccessToken), nil
}

// do выполняет запрос и возвращает тело успешного ответа
func (c *Client) do(op string, req *resty.Request, method, path string) ([]byte, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsSuccess() {
		return nil, &APIError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(resp.String()),
		}
	}
	return resp.Body(), nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query map[string]string, out any) error {
	req, err := c.authorized(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.do(op, req.SetQueryParams(query), resty.MethodGet, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to parse JSON: %w", op, err)
	}
	return nil
}

// send выполняет изменяющий запрос и возвращает текст ответа сервера
func (c *Client) send(ctx context.Context, op, method, path string, query map[string]string, body any) (string, error) {
	req, err := c.authorized(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.SetQueryParams(query)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		req.SetHeader("Content-Type", "application/json").SetBody(data)
	}
	resp, err := c.do(op, req, method, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(resp)), nil
}

type credentialsRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type hmacKeyResponse struct {
	HMACKey string `json:"_HMAC_Key"`
}

// RequestHMACKey обменивает учётные данные на ключ сессии
func (c *Client) RequestHMACKey(ctx context.Context, userName, password string) (string, error) {
	const op = "request HMAC key"
	req := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(credentialsRequest{UserName: userName, Password: password})

	body, err := c.do(op, req, resty.MethodPost, "/Authentication/Request_HMAC_Key")
	if err != nil {
		return "", err
	}

	var out hmacKeyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%s: failed to parse JSON: %w", op, err)
	}
	if out.HMACKey == "" {
		return "", fmt.Errorf("%s: empty key in response", op)
	}
	return out.HMACKey, nil
}

// GetUserDetails возвращает данные текущего пользователя
func (c *Client) GetUserDetails(ctx context.Context) (*UserDetails, error) {
	var out UserDetails
	if err := c.getJSON(ctx, "get user details", "/User/GetUserDetails", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetTestData сбрасывает демонстрационные данные на сервере
func (c *Client) ResetTestData(ctx context.Context) (string, error) {
	return c.send(ctx, "reset test data", resty.MethodPost, "/Test/ResetTestData", nil, nil)
}
