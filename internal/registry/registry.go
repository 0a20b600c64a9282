// Package registry — реестр обработчиков типов устройств.
// Наполняется один раз на старте процесса и запечатывается (Seal);
// после этого только чтение под конкурентной нагрузкой.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"teleicu/internal/devicetype"
)

var (
	// ErrUnknownDeviceType — тип не зарегистрирован. Отличим от прочих
	// ошибок, чтобы зависимый плагин мог на старте понять, что
	// требуемый тип (например, gateway) так и не появился.
	ErrUnknownDeviceType = errors.New("unknown device type")
	ErrDuplicate         = errors.New("device type already registered")
	ErrSealed            = errors.New("registry is sealed")
)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]devicetype.Handler
	sealed   bool
}

func New() *Registry {
	return &Registry{handlers: make(map[string]devicetype.Handler)}
}

// Register связывает тег типа устройства с обработчиком.
// Повторная регистрация тега и регистрация после Seal — ошибки.
func (r *Registry) Register(tag string, h devicetype.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrSealed, tag)
	}
	if _, ok := r.handlers[tag]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, tag)
	}
	r.handlers[tag] = h
	return nil
}

// Handler возвращает обработчик по тегу.
func (r *Registry) Handler(tag string) (devicetype.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeviceType, tag)
	}
	return h, nil
}

// Require проверяет, что прямая зависимость плагина уже зарегистрирована.
// Вызывается плагином перед собственной регистрацией; отсутствие
// зависимости — фатальная ошибка инициализации, не рантайма.
func (r *Registry) Require(tag string) error {
	if _, err := r.Handler(tag); err != nil {
		return fmt.Errorf("required device type %q is not registered: %w", tag, err)
	}
	return nil
}

// Seal запрещает дальнейшую мутацию реестра.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
