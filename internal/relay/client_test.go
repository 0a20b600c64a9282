package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"teleicu/internal/models"
	"teleicu/internal/validation"
)

type seqTokens struct{ n int }

func (s *seqTokens) Generate() (string, error) {
	s.n++
	return fmt.Sprintf("tok-%d", s.n), nil
}

func gatewayFor(t *testing.T, srv *httptest.Server) *models.Device {
	t.Helper()
	host := strings.TrimPrefix(srv.URL, "http://")
	return &models.Device{
		UUID:     "gw-1",
		CareType: models.CareTypeGateway,
		Metadata: datatypes.JSONMap{
			"endpoint_address":    host,
			"insecure_connection": true,
		},
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(gatewayFor(t, srv), &seqTokens{}, Options{Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestNewClientEndpointNotConfigured(t *testing.T) {
	gw := &models.Device{UUID: "gw-1", CareType: models.CareTypeGateway, Metadata: datatypes.JSONMap{}}
	_, err := NewClient(gw, &seqTokens{}, Options{})
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "endpoint_address")
}

func TestProductionForcesSecureScheme(t *testing.T) {
	gw := &models.Device{
		UUID:     "gw-1",
		CareType: models.CareTypeGateway,
		Metadata: datatypes.JSONMap{
			"endpoint_address":    "gateway.local",
			"insecure_connection": true,
		},
	}
	c, err := NewClient(gw, &seqTokens{}, Options{Production: true})
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.local/status", c.buildURL("/status"))

	c, err = NewClient(gw, &seqTokens{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://gateway.local/status", c.buildURL("/status"))
}

func TestGetJSONDecodesBody(t *testing.T) {
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		assert.Equal(t, "42", r.URL.Query().Get("preset"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, time.Second)
	out, err := c.GetJSON(context.Background(), "/status", url.Values{"preset": {"42"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "ok"}, out)
	assert.Equal(t, "Care_Bearer tok-1", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestFreshTokenPerCall(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, time.Second)
	_, err := c.GetJSON(context.Background(), "/a", nil)
	require.NoError(t, err)
	_, err = c.GetJSON(context.Background(), "/b", nil)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.NotEqual(t, tokens[0], tokens[1])
}

func TestTimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 50*time.Millisecond)
	_, err := c.GetJSON(context.Background(), "/slow", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout), err)
	re, _ := AsError(err)
	assert.Equal(t, http.StatusGatewayTimeout, re.Status)
}

func TestUnreachableKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // порт закрыт — connection refused

	c := newTestClient(t, srv, time.Second)
	_, err := c.GetJSON(context.Background(), "/", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnreachable), err)
}

func TestUpstreamErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, time.Second)
	_, err := c.PostJSON(context.Background(), "/act", map[string]any{"x": 1})
	require.Error(t, err)
	re, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, re.Kind)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, "boom", string(re.Body))
}

func TestBadResponseKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, time.Second)
	_, err := c.GetJSON(context.Background(), "/", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBadResponse), err)
}

func TestRawPassthroughKeepsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprint(w, "short and stout")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, time.Second)
	res, err := c.GetRaw(context.Background(), "/teapot", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, res.Status)
	assert.Equal(t, "text/plain", res.ContentType)
	assert.Equal(t, "short and stout", string(res.Body))
}
