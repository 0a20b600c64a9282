package labanalyzer

import (
	"context"

	"teleicu/internal/devicetype"
	"teleicu/internal/events"
	"teleicu/internal/logs"
	"teleicu/internal/relay"
)

// Subscriber заказывает тест на анализаторе, когда хостовая EMR
// сообщает о собранном образце. Отказ заказа только логируется:
// сбор образца уже состоялся, откатывать его событием нельзя.
type Subscriber struct {
	devices   devicetype.DeviceLookup
	tokens    relay.TokenSource
	relayOpts relay.Options
}

func NewSubscriber(devices devicetype.DeviceLookup, tokens relay.TokenSource, opts relay.Options) *Subscriber {
	return &Subscriber{devices: devices, tokens: tokens, relayOpts: opts}
}

// Register подписывает обработчик на событие «образец собран».
func (s *Subscriber) Register(bus *events.Bus) {
	bus.Subscribe("lab-analyzer.order-test", events.SpecimenCollected, s.onSpecimenCollected)
}

func (s *Subscriber) onSpecimenCollected(ctx context.Context, ev events.Event) {
	payload, ok := ev.Payload.(events.SpecimenCollectedPayload)
	if !ok {
		logs.Logger.Errorf("lab-analyzer: unexpected payload type for %s", ev.Name)
		return
	}

	dev, err := s.devices.ByUUID(ctx, payload.AnalyzerUUID, Tag)
	if err != nil {
		logs.Logger.Errorf("lab-analyzer: analyzer %s lookup: %v", payload.AnalyzerUUID, err)
		return
	}
	if dev == nil {
		logs.Logger.Warnf("lab-analyzer: analyzer %s not found, specimen order skipped", payload.AnalyzerUUID)
		return
	}
	gw, err := devicetype.ResolveGateway(ctx, s.devices, dev)
	if err != nil || gw == nil {
		logs.Logger.Warnf("lab-analyzer %s: gateway unavailable, specimen order skipped", dev.UUID)
		return
	}
	client, err := relay.NewClient(gw, s.tokens, s.relayOpts)
	if err != nil {
		logs.Logger.Warnf("lab-analyzer %s: %v", dev.UUID, err)
		return
	}
	data, err := analyzerRequest(dev)
	if err != nil {
		logs.Logger.Warnf("lab-analyzer %s: %v", dev.UUID, err)
		return
	}
	data["patient"] = payload.Patient
	data["facility"] = payload.Facility
	data["service_request"] = payload.ServiceRequest

	if _, err := client.PostRaw(ctx, "/lab_analyzer/order_test", data); err != nil {
		logs.Logger.Errorf("lab-analyzer %s: specimen order failed: %v", dev.UUID, err)
	}
}
