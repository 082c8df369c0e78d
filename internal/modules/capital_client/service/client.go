package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	headerAPIKey   = "X-CAP-API-KEY"
	headerCST      = "CST"
	headerSecToken = "X-SECURITY-TOKEN"

	sessionPath = "/api/v1/session"
)

var (
	ErrNoSession = errors.New("capital: no session tokens in response")
	ErrRejected  = errors.New("capital: deal rejected")
)

// APIError - не-2xx ответ брокера.
type APIError struct {
	Method string
	Path   string
	Status int
	Code   string
	Body   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("capital %s %s: http %d: %s", e.Method, e.Path, e.Status, e.Code)
	}
	return fmt.Sprintf("capital %s %s: http %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Identifier string
	Password   string
	DealSize   float64
	Timeout    time.Duration
	RatePerSec float64
}

// Client - REST Capital.com. Сессия поднимается лениво и переоткрывается один раз на 401.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger

	mu        sync.Mutex
	cst       string
	secToken  string
	accountID string // выбранный оператором счёт, пусто = preferred
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		log:     log.Named("capital"),
	}
}

func (c *Client) tokens() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cst, c.secToken
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.cst, c.secToken = "", ""
	c.mu.Unlock()
}

// Login открывает новую сессию.
func (c *Client) Login(ctx context.Context) error {
	payload, err := sonic.Marshal(sessionRequest{
		Identifier: c.cfg.Identifier,
		Password:   c.cfg.Password,
	})
	if err != nil {
		return errors.Wrap(err, "capital login marshal")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "capital login")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(sessionPath), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "capital login new request")
	}
	req.Header.Set(headerAPIKey, c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "capital login do")
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		return apiError(http.MethodPost, sessionPath, resp.StatusCode, data)
	}

	cst, sec := resp.Header.Get(headerCST), resp.Header.Get(headerSecToken)
	if cst == "" || sec == "" {
		return ErrNoSession
	}

	c.mu.Lock()
	c.cst, c.secToken = cst, sec
	c.mu.Unlock()

	if err := c.restoreAccount(ctx); err != nil {
		return errors.Wrap(err, "capital login restore account")
	}

	c.log.Info("session opened", zap.String("account", c.account()))
	return nil
}

// do выполняет запрос с сессией; out == nil - тело ответа не нужно.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = sonic.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "capital %s %s marshal", method, path)
		}
	}

	for attempt := 0; ; attempt++ {
		if cst, _ := c.tokens(); cst == "" {
			if err := c.Login(ctx); err != nil {
				return err
			}
		}

		status, data, err := c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			c.log.Warn("session expired, re-login", zap.String("path", path))
			c.dropSession()
			continue
		}
		if status/100 != 2 {
			return apiError(method, path, status, data)
		}
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := sonic.Unmarshal(data, out); err != nil {
			return errors.Wrapf(err, "capital %s %s decode; body=%s", method, path, string(data))
		}
		return nil
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, errors.Wrapf(err, "capital %s %s", method, path)
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), rd)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "capital %s %s new request", method, path)
	}
	cst, sec := c.tokens()
	req.Header.Set(headerCST, cst)
	req.Header.Set(headerSecToken, sec)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "capital %s %s do", method, path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "capital %s %s read body", method, path)
	}

	c.log.Debug("request",
		zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(started)))
	return resp.StatusCode, data, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func apiError(method, path string, status int, data []byte) error {
	e := &APIError{Method: method, Path: path, Status: status, Body: strings.TrimSpace(string(data))}
	var b apiErrorBody
	if sonic.Unmarshal(data, &b) == nil {
		e.Code = b.ErrorCode
	}
	return e
}
