// Package relay — исходящие HTTP-вызовы платформы к настроенному шлюзу:
// единая авторизация, единая классификация отказов. Ретраев нет —
// каждый вызов at-most-once, политика повторов остаётся за вызывающим.
package relay

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
	"time"

	"teleicu/internal/logs"
	"teleicu/internal/models"
	"teleicu/internal/validation"
)

// TokenSource выпускает свежий подписанный JWT на каждый вызов.
type TokenSource interface {
	Generate() (string, error)
}

// Options — параметры клиента из конфигурации процесса.
type Options struct {
	Timeout    time.Duration // дефолт 30s
	AuthScheme string        // дефолт Care_Bearer
	Production bool          // запрещает insecure_connection
	HTTPClient *http.Client  // подменяется в тестах
}

// RawResult — ответ шлюза «как есть» для проксирующих эндпоинтов.
type RawResult struct {
	Status      int
	ContentType string
	Body        []byte
}

type Client struct {
	host     string
	insecure bool
	scheme   string
	tokens   TokenSource
	http     *http.Client
}

// NewClient строит клиента по записи устройства-шлюза.
// Отсутствие endpoint_address в metadata — ошибка конфигурации,
// возвращается сразу (field-keyed), без похода в сеть.
func NewClient(gw *models.Device, tokens TokenSource, opts Options) (*Client, error) {
	host, _ := gw.Metadata["endpoint_address"].(string)
	if host == "" {
		return nil, validation.NotConfigured("endpoint_address")
	}
	insecure, _ := gw.Metadata["insecure_connection"].(bool)
	if opts.Production {
		insecure = false
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	scheme := opts.AuthScheme
	if scheme == "" {
		scheme = "Care_Bearer"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		host:     host,
		insecure: insecure,
		scheme:   scheme,
		tokens:   tokens,
		http:     hc,
	}, nil
}

func (c *Client) buildURL(path string) string {
	proto := "https"
	if c.insecure {
		proto = "http"
	}
	return fmt.Sprintf("%s://%s%s", proto, c.host, path)
}

// GetRaw — GET с query-параметрами, ответ пробрасывается verbatim.
func (c *Client) GetRaw(ctx context.Context, path string, params url.Values) (*RawResult, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

// PostRaw — POST с JSON-телом, ответ пробрасывается verbatim.
func (c *Client) PostRaw(ctx context.Context, path string, body any) (*RawResult, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// GetJSON — GET с декодированием; не-2xx и мусор в теле — типизированные
// ошибки.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	res, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON(res)
}

// PostJSON — POST с декодированием ответа.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (map[string]any, error) {
	res, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON(res)
}

func decodeJSON(res *RawResult) (map[string]any, error) {
	if res.Status >= http.StatusBadRequest {
		return nil, &Error{Kind: KindUpstream, Status: res.Status, Body: res.Body}
	}
	var out map[string]any
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return nil, newError(KindBadResponse, statusByKind[KindBadResponse], err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) (*RawResult, error) {
	token, err := c.tokens.Generate()
	if err != nil {
		logs.Logger.Errorf("relay: token generation failed: %v", err)
		return nil, newError(KindInternal, statusByKind[KindInternal], err)
	}

	u := c.buildURL(path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			logs.Logger.Errorf("relay: request marshal failed: %v", err)
			return nil, newError(KindInternal, statusByKind[KindInternal], err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		logs.Logger.Errorf("relay: build request %s %s: %v", method, u, err)
		return nil, newError(KindInternal, statusByKind[KindInternal], err)
	}
	req.Header.Set("Authorization", c.scheme+" "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logs.Logger.Errorf("relay: read response body: %v", err)
		return nil, newError(KindInternal, statusByKind[KindInternal], err)
	}

	return &RawResult{
		Status:      resp.StatusCode,
		ContentType: contentTypeOrJSON(resp),
		Body:        raw,
	}, nil
}

func contentTypeOrJSON(resp *http.Response) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}

func classifyTransport(err error) *Error {
	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, statusByKind[KindTimeout], err)
	}
	// connection refused / DNS / TLS и прочие транспортные отказы
	logs.Logger.Errorf("relay: gateway connection error: %v", err)
	return newError(KindUnreachable, statusByKind[KindUnreachable], err)
}

// WriteError отдаёт relay-ошибку вызывающей стороне: upstream-статус и
// тело пробрасываются, остальное — санитизированный problem+json.
func WriteError(w http.ResponseWriter, err error) {
	re, ok := AsError(err)
	if !ok {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return
	}
	if re.Kind == KindUpstream {
		models.WriteProblem(w, http.StatusBadGateway, "Gateway Rejected Request", "", map[string]any{
			"upstream_status": re.Status,
			"upstream_body":   string(re.Body),
		})
		return
	}
	models.WriteProblem(w, re.Status, "Gateway Request Failed", re.Error(), nil)
}
