package remote

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/aquavo/fishweb-cart/internal/circuitbreaker"
	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	CSRFHeader     = "X-CSRF-Token"
	CSRFCookie     = "csrf_token"
	SessionCookie  = "session"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	BaseURL  string
	CartPath string // defaults to /api/cart
	// ProductsPath defaults to /api/products.
	ProductsPath string
	Timeout  time.Duration
	// CSRFToken is generated when empty.
	CSRFToken string
	Transport http.RoundTripper
}

// StatusError is a non-2xx answer other than 401.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote cart: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote cart: status %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// Client talks to the remote cart API with same-origin credentials held in a
// cookie jar and the anti-forgery header on every request.
type Client struct {
	baseURL    *url.URL
	cartPath   string
	prodPath   string
	timeout    time.Duration
	csrfToken  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base url: %w", err)
	}
	if cfg.CartPath == "" {
		cfg.CartPath = "/api/cart"
	}
	if cfg.ProductsPath == "" {
		cfg.ProductsPath = "/api/products"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CSRFToken == "" {
		if cfg.CSRFToken, err = generateToken(); err != nil {
			return nil, err
		}
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("remote: cookie jar: %w", err)
	}
	jar.SetCookies(base, []*http.Cookie{{Name: CSRFCookie, Value: cfg.CSRFToken, Path: "/"}})

	settings := circuitbreaker.DefaultSettings("remote-cart")
	settings.IsSuccessful = countsAsSuccess

	return &Client{
		baseURL:   base,
		cartPath:  strings.TrimRight(cfg.CartPath, "/"),
		prodPath:  strings.TrimRight(cfg.ProductsPath, "/"),
		timeout:   cfg.Timeout,
		csrfToken: cfg.CSRFToken,
		httpClient: &http.Client{
			Jar:       jar,
			Transport: otelhttp.NewTransport(transport),
		},
		breaker: circuitbreaker.New[struct{}](settings, logger),
		logger:  logger,
	}, nil
}

// SetSessionToken installs the authenticated session cookie.
func (c *Client) SetSessionToken(token string) {
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}})
}

func (c *Client) ClearSession() {
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1}})
}

func (c *Client) Fetch(ctx context.Context) ([]domain.CartItem, error) {
	var lines []domain.RemoteItem
	if err := c.do(ctx, http.MethodGet, c.cartPath, nil, &lines); err != nil {
		return nil, err
	}
	items := make([]domain.CartItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, line.ToCartItem())
	}
	return items, nil
}

func (c *Client) Add(ctx context.Context, productID string, quantity int) error {
	return c.do(ctx, http.MethodPost, c.cartPath, addItemRequest{ProductID: productID, Quantity: quantity}, nil)
}

func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.itemPath(id), nil, nil)
}

func (c *Client) Update(ctx context.Context, id string, quantity int) error {
	return c.do(ctx, http.MethodPatch, c.itemPath(id), updateQuantityRequest{Quantity: quantity}, nil)
}

func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.cartPath, nil, nil)
}

// Product looks up one catalog entry. It needs no session.
func (c *Client) Product(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodGet, c.prodPath+"/"+url.PathEscape(id), nil, &p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (c *Client) itemPath(id string) string {
	return c.cartPath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, method, path, in, out)
	})
	if circuitbreaker.IsOpen(err) {
		return fmt.Errorf("remote cart unavailable: %w", err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target := strings.TrimRight(c.baseURL.String(), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(CSRFHeader, c.csrfToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readStatusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
		se.Code = eb.Code
		se.Message = eb.Error
	} else {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}

// countsAsSuccess keeps client-side rejections from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, domain.ErrSessionExpired) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500
	}
	return false
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("remote: generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
