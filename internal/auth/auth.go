// Package auth аутентифицирует входящие вызовы ОТ шлюзов и middleware.
// Оба варианта делят один путь проверки (JWKS → RS256), различаясь
// только схемой Authorization, материализуемым принципалом и выбором
// протокола до identity-эндпоинта шлюза.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/datatypes"

	"teleicu/internal/devicetype"
	"teleicu/internal/logs"
	"teleicu/internal/models"
	"teleicu/internal/token"
)

// GatewayHeader несёт внешний id шлюза, от имени которого пришёл вызов.
const GatewayHeader = "X-Gateway-Id"

type ctxKey string

const (
	gatewayKey   ctxKey = "auth.gateway"
	principalKey ctxKey = "auth.principal"
)

type Authenticator struct {
	devices   devicetype.DeviceLookup
	keys      *token.KeyCache
	scheme    string
	principal string
	protocol  func(md datatypes.JSONMap) string
}

// NewGatewayAuth — вызовы непосредственно от шлюза (Gateway_Bearer).
// Протокол до identity-эндпоинта: https, если metadata.insecure не
// выставлен.
func NewGatewayAuth(devices devicetype.DeviceLookup, keys *token.KeyCache) *Authenticator {
	return &Authenticator{
		devices:   devices,
		keys:      keys,
		scheme:    "Gateway_Bearer",
		principal: "teleicu-gateway",
		protocol: func(md datatypes.JSONMap) string {
			if insecure, _ := md["insecure"].(bool); insecure {
				return "http"
			}
			return "https"
		},
	}
}

// NewMiddlewareAuth — вызовы от промежуточного middleware
// (Middleware_Bearer). Протокол: https по умолчанию, metadata.use_https
// может его выключить.
func NewMiddlewareAuth(devices devicetype.DeviceLookup, keys *token.KeyCache) *Authenticator {
	return &Authenticator{
		devices:   devices,
		keys:      keys,
		scheme:    "Middleware_Bearer",
		principal: "careuser",
		protocol: func(md datatypes.JSONMap) string {
			useHTTPS := true
			if v, ok := md["use_https"].(bool); ok {
				useHTTPS = v
			}
			if !useHTTPS {
				return "http"
			}
			return "https"
		},
	}
}

// Middleware — mux-совместимая обёртка; при успехе кладёт в контекст
// принципала и устройство-шлюз.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw, err := a.authenticate(r)
		if err != nil {
			models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), nil)
			return
		}
		ctx := context.WithValue(r.Context(), gatewayKey, gw)
		ctx = context.WithValue(ctx, principalKey, a.principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*models.Device, error) {
	rawToken, err := a.rawToken(r)
	if err != nil {
		return nil, err
	}

	externalID := r.Header.Get(GatewayHeader)
	if externalID == "" {
		return nil, fmt.Errorf("%s header is required", GatewayHeader)
	}

	gw, err := a.devices.ByUUID(r.Context(), externalID, models.CareTypeGateway)
	if err != nil {
		logs.Logger.Errorf("auth: gateway lookup %s: %v", externalID, err)
		return nil, fmt.Errorf("invalid gateway device")
	}
	if gw == nil {
		return nil, fmt.Errorf("invalid gateway device")
	}

	host, _ := gw.Metadata["endpoint_address"].(string)
	if host == "" {
		return nil, fmt.Errorf("gateway endpoint not configured")
	}

	openIDURL := fmt.Sprintf("%s://%s/.well-known/openid-configuration/",
		a.protocol(gw.Metadata), host)

	if _, err := a.keys.Authenticate(r.Context(), rawToken, openIDURL); err != nil {
		// причина уже в логах; наружу — единый ответ
		return nil, token.ErrInvalidToken
	}
	return gw, nil
}

func (a *Authenticator) rawToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("authorization header is required")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", fmt.Errorf("authorization header must contain two space-delimited values")
	}
	if parts[0] != a.scheme {
		return "", token.ErrInvalidToken
	}
	return parts[1], nil
}

// WithIdentity кладёт аутентифицированную пару в контекст. Для хостов,
// где аутентификация уже выполнена снаружи, и для тестов обработчиков.
func WithIdentity(ctx context.Context, gw *models.Device, principal string) context.Context {
	ctx = context.WithValue(ctx, gatewayKey, gw)
	return context.WithValue(ctx, principalKey, principal)
}

// GatewayFrom достаёт аутентифицированный шлюз из контекста запроса.
func GatewayFrom(r *http.Request) *models.Device {
	gw, _ := r.Context().Value(gatewayKey).(*models.Device)
	return gw
}

// PrincipalFrom — имя локального принципала, от которого выполняется
// запрос ("teleicu-gateway" / "careuser").
func PrincipalFrom(r *http.Request) string {
	p, _ := r.Context().Value(principalKey).(string)
	return p
}
