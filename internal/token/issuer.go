// Package token — обе стороны доверия между платформой и шлюзами:
// выпуск собственных RS256-токенов для исходящих relay-вызовов и
// проверка входящих токенов по JWKS внешнего identity-провайдера.
package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer выпускает короткоживущие подписанные JWT от имени платформы.
// Каждый вызов Generate — новый токен (jti + iat), чтобы утечка токена
// в логах ограничивалась окном TTL.
type Issuer struct {
	key    *rsa.PrivateKey
	issuer string
	ttl    time.Duration
	keyID  string

	now func() time.Time // подменяется в тестах
}

type IssuerOptions struct {
	Issuer string
	TTL    time.Duration
	KeyID  string
}

func NewIssuer(key *rsa.PrivateKey, opts IssuerOptions) *Issuer {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Issuer{
		key:    key,
		issuer: opts.Issuer,
		ttl:    ttl,
		keyID:  opts.KeyID,
		now:    time.Now,
	}
}

// Generate выпускает свежий токен. Повторное использование между
// запросами не допускается — вызывающая сторона зовёт Generate на
// каждый исходящий вызов.
func (i *Issuer) Generate() (string, error) {
	now := i.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		ID:        uuid.NewString(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if i.keyID != "" {
		t.Header["kid"] = i.keyID
	}
	return t.SignedString(i.key)
}

// JWKS — публикуемый набор публичных ключей платформы
// (для GET /.well-known/jwks.json).
func (i *Issuer) JWKS() map[string]any {
	pub := &i.key.PublicKey
	return map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": i.keyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
}

// LoadOrGenerateKey читает RSA-ключ из PEM-файла; при пустом пути
// генерирует эфемерный ключ (dev-режим: после рестарта шлюзы перестанут
// доверять старым токенам).
func LoadOrGenerateKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		return rsa.GenerateKey(rand.Reader, 2048)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block in key file")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key file does not contain an RSA key")
	}
	return rk, nil
}
