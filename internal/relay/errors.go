package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind — классификация отказов при вызове шлюза. Вызывающая сторона
// обязана уметь отличать их друг от друга.
type Kind int

const (
	// KindTimeout — шлюз не ответил за отведённый таймаут (504).
	KindTimeout Kind = iota + 1
	// KindUnreachable — соединение/DNS/TLS-отказ (503).
	KindUnreachable
	// KindUpstream — шлюз ответил не-2xx; статус и тело сохраняются.
	KindUpstream
	// KindBadResponse — тело ответа не разобралось как JSON (502).
	KindBadResponse
	// KindInternal — всё прочее; детали в логах, наружу не утекают (500).
	KindInternal
)

// Error — типизированная ошибка relay-клиента.
type Error struct {
	Kind   Kind
	Status int    // HTTP-эквивалент для ответа вызывающей стороне
	Body   []byte // тело ответа шлюза (только KindUpstream)
	cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "gateway request timed out"
	case KindUnreachable:
		return "failed to connect to gateway device"
	case KindUpstream:
		return fmt.Sprintf("gateway rejected request: status=%d", e.Status)
	case KindBadResponse:
		return "invalid JSON response from gateway device"
	default:
		return "unexpected error during gateway request"
	}
}

func (e *Error) Unwrap() error { return e.cause }

// IsKind сообщает, является ли err relay-ошибкой данного вида.
func IsKind(err error, k Kind) bool {
	re, ok := AsError(err)
	return ok && re.Kind == k
}

func AsError(err error) (*Error, bool) {
	var re *Error
	ok := errors.As(err, &re)
	return re, ok
}

func newError(k Kind, status int, cause error) *Error {
	return &Error{Kind: k, Status: status, cause: cause}
}

var statusByKind = map[Kind]int{
	KindTimeout:     http.StatusGatewayTimeout,
	KindUnreachable: http.StatusServiceUnavailable,
	KindBadResponse: http.StatusBadGateway,
	KindInternal:    http.StatusInternalServerError,
}
