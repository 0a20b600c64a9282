package token

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teleicu/internal/logs"
)

const (
	openIDRequestTimeout = 5 * time.Second
	keyCacheTTL          = 5 * time.Minute
)

// ErrInvalidToken — единый ответ на любой сбой проверки (сеть, парсинг,
// подпись, срок). Конкретная причина не раскрывается вызывающему,
// только логируется.
var ErrInvalidToken = errors.New("given token not valid for any token type")

type cacheEntry struct {
	key     *rsa.PublicKey
	fetched time.Time
}

// KeyCache — кэш публичных ключей, ключ кэша — URL. Значения
// иммутабельны, обновление last-writer-wins, поэтому блокировка
// короткая и только вокруг map.
type KeyCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	ttl  time.Duration
	http *http.Client
	now  func() time.Time
}

func NewKeyCache() *KeyCache {
	return &KeyCache{
		entries: make(map[string]cacheEntry),
		ttl:     keyCacheTTL,
		http:    &http.Client{Timeout: openIDRequestTimeout},
		now:     time.Now,
	}
}

// PublicKey возвращает первый ключ набора по данному URL, из кэша или
// сетевым запросом с ограниченным таймаутом. URL может указывать либо
// прямо на JWKS, либо на OpenID discovery-документ с jwks_uri.
func (c *KeyCache) PublicKey(ctx context.Context, url string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	if e, ok := c.entries[url]; ok && c.now().Sub(e.fetched) < c.ttl {
		c.mu.Unlock()
		return e.key, nil
	}
	c.mu.Unlock()

	key, err := c.fetchKey(ctx, url)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[url] = cacheEntry{key: key, fetched: c.now()}
	c.mu.Unlock()
	return key, nil
}

// Authenticate проверяет RS256-подпись токена ключом, полученным по url,
// и возвращает claims. Любой отказ схлопывается в ErrInvalidToken.
func (c *KeyCache) Authenticate(ctx context.Context, rawToken, url string) (jwt.MapClaims, error) {
	key, err := c.PublicKey(ctx, url)
	if err != nil {
		logs.Logger.Infof("token verification: key fetch for %s failed: %v", url, err)
		return nil, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		logs.Logger.Infof("token verification failed: %v", err)
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *KeyCache) fetchKey(ctx context.Context, url string) (*rsa.PublicKey, error) {
	doc, err := c.fetchJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	// discovery-документ вместо JWKS — один дополнительный переход
	if _, ok := doc["keys"]; !ok {
		jwksURL, _ := doc["jwks_uri"].(string)
		if jwksURL == "" {
			return nil, fmt.Errorf("document at %s has neither keys nor jwks_uri", url)
		}
		if doc, err = c.fetchJSON(ctx, jwksURL); err != nil {
			return nil, err
		}
	}

	keys, _ := doc["keys"].([]any)
	if len(keys) == 0 {
		return nil, errors.New("empty key set")
	}
	first, _ := keys[0].(map[string]any)
	return parseRSAJWK(first)
}

func (c *KeyCache) fetchJSON(ctx context.Context, url string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, openIDRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseRSAJWK(jwk map[string]any) (*rsa.PublicKey, error) {
	if jwk == nil {
		return nil, errors.New("malformed key entry")
	}
	if kty, _ := jwk["kty"].(string); kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", jwk["kty"])
	}
	nRaw, _ := jwk["n"].(string)
	eRaw, _ := jwk["e"].(string)
	nb, err := base64.RawURLEncoding.DecodeString(nRaw)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(eRaw)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
