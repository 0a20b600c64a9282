// Package events — явные доменные события вместо неявных хуков.
// Подписчики именованы, вызываются синхронно; отказ подписчика
// логируется и не валит ни публикатора, ни остальных подписчиков.
package events

import (
	"context"
	"sync"

	"teleicu/internal/logs"
)

const SpecimenCollected = "specimen.collected"

type Event struct {
	Name    string
	Payload any
}

type HandlerFunc func(ctx context.Context, ev Event)

type subscriber struct {
	name string
	fn   HandlerFunc
}

type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Subscribe регистрирует именованного подписчика на событие.
func (b *Bus) Subscribe(name, event string, fn HandlerFunc) {
	b.mu.Lock()
	b.subs[event] = append(b.subs[event], subscriber{name: name, fn: fn})
	b.mu.Unlock()
}

// Publish доставляет событие всем подписчикам по порядку регистрации.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := b.subs[ev.Name]
	b.mu.RUnlock()

	for _, s := range subs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logs.Logger.Errorf("events: subscriber %s panicked on %s: %v", s.name, ev.Name, rec)
				}
			}()
			s.fn(ctx, ev)
		}()
	}
}

// SpecimenCollectedPayload публикуется хостовой EMR, когда образец
// собран и готов к анализу.
type SpecimenCollectedPayload struct {
	AnalyzerUUID   string             `json:"analyzer"`
	Patient        PatientInfo        `json:"patient"`
	Facility       FacilityInfo       `json:"facility"`
	ServiceRequest ServiceRequestInfo `json:"service_request"`
}

type PatientInfo struct {
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

type FacilityInfo struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
}

type ServiceRequestInfo struct {
	ExternalID string `json:"external_id"`
	TestCode   string `json:"test_code"`
	DateTime   string `json:"date_time"`
}
