package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"teleicu/internal/models"
	"teleicu/internal/token"
)

type fakeDevices struct {
	byUUID map[string]*models.Device
}

func (f *fakeDevices) ByUUID(_ context.Context, uuid, careType string) (*models.Device, error) {
	d := f.byUUID[uuid]
	if d == nil || d.CareType != careType {
		return nil, nil
	}
	return d, nil
}

func (f *fakeDevices) SaveMetadata(context.Context, *models.Device) error { return nil }

func newIdentityServer(t *testing.T, iss *token.Issuer) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/openid-configuration/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(iss.JWKS())
	}))
}

func setup(t *testing.T) (*Authenticator, *token.Issuer, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	iss := token.NewIssuer(key, token.IssuerOptions{Issuer: "gw-1", TTL: time.Minute})

	srv := newIdentityServer(t, iss)
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	devices := &fakeDevices{byUUID: map[string]*models.Device{
		"gw-1": {
			UUID:     "gw-1",
			CareType: models.CareTypeGateway,
			Metadata: datatypes.JSONMap{
				"endpoint_address": host,
				"insecure":         true, // identity-эндпоинт теста живёт на http
			},
		},
		"no-endpoint": {
			UUID:     "no-endpoint",
			CareType: models.CareTypeGateway,
			Metadata: datatypes.JSONMap{},
		},
	}}
	return NewGatewayAuth(devices, token.NewKeyCache()), iss, "gw-1"
}

func doAuth(t *testing.T, a *Authenticator, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var principal string
	var gw *models.Device
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = PrincipalFrom(r)
		gw = GatewayFrom(r)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	mutate(req)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code == http.StatusOK {
		assert.Equal(t, "teleicu-gateway", principal)
		require.NotNil(t, gw)
	}
	return rr
}

func TestGatewayAuthHappyPath(t *testing.T) {
	a, iss, gwID := setup(t)
	tok, err := iss.Generate()
	require.NoError(t, err)

	rr := doAuth(t, a, func(r *http.Request) {
		r.Header.Set("Authorization", "Gateway_Bearer "+tok)
		r.Header.Set(GatewayHeader, gwID)
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGatewayAuthRejectsWrongScheme(t *testing.T) {
	a, iss, gwID := setup(t)
	tok, err := iss.Generate()
	require.NoError(t, err)

	rr := doAuth(t, a, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
		r.Header.Set(GatewayHeader, gwID)
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGatewayAuthRejectsUnknownGateway(t *testing.T) {
	a, iss, _ := setup(t)
	tok, err := iss.Generate()
	require.NoError(t, err)

	rr := doAuth(t, a, func(r *http.Request) {
		r.Header.Set("Authorization", "Gateway_Bearer "+tok)
		r.Header.Set(GatewayHeader, "nope")
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGatewayAuthRejectsUnconfiguredGateway(t *testing.T) {
	a, iss, _ := setup(t)
	tok, err := iss.Generate()
	require.NoError(t, err)

	rr := doAuth(t, a, func(r *http.Request) {
		r.Header.Set("Authorization", "Gateway_Bearer "+tok)
		r.Header.Set(GatewayHeader, "no-endpoint")
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGatewayAuthRejectsForgedToken(t *testing.T) {
	a, _, gwID := setup(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged := token.NewIssuer(otherKey, token.IssuerOptions{Issuer: "gw-1", TTL: time.Minute})
	tok, err := forged.Generate()
	require.NoError(t, err)

	rr := doAuth(t, a, func(r *http.Request) {
		r.Header.Set("Authorization", "Gateway_Bearer "+tok)
		r.Header.Set(GatewayHeader, gwID)
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGatewayAuthRequiresBothHeaders(t *testing.T) {
	a, iss, gwID := setup(t)
	tok, err := iss.Generate()
	require.NoError(t, err)

	rr := doAuth(t, a, func(r *http.Request) {
		r.Header.Set(GatewayHeader, gwID)
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doAuth(t, a, func(r *http.Request) {
		r.Header.Set("Authorization", "Gateway_Bearer "+tok)
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
