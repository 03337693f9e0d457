package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"chatroom-service/internal/observability"
)

// transport is the broker-specific half of a cross-process bus. It must call
// the dispatch function it was started with for every inbound payload.
type transport interface {
	name() string
	subscribe(ctx context.Context, group string) error
	unsubscribe(ctx context.Context, group string) error
	publish(ctx context.Context, group string, payload []byte) error
	close() error
}

// remoteBus routes every publish through a broker and fans inbound events out
// to local subscribers. The process holds one broker subscription per group
// while it has at least one local subscriber.
type remoteBus struct {
	reg *registry
	t   transport
	// mu serialises broker subscribe/unsubscribe against registry changes
	mu sync.Mutex
}

func newRemoteBus(t transport) *remoteBus {
	return &remoteBus{reg: newRegistry(), t: t}
}

func (b *remoteBus) Subscribe(ctx context.Context, group string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if first := b.reg.add(group, sub); first {
		if err := b.t.subscribe(ctx, group); err != nil {
			b.reg.remove(group, sub)
			return fmt.Errorf("%s subscribe %s: %w", b.t.name(), group, err)
		}
		log.Debug().Str("module", "bus").Str("transport", b.t.name()).Str("group", group).Msg("broker subscription opened")
	}
	return nil
}

func (b *remoteBus) Unsubscribe(ctx context.Context, group string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if last := b.reg.remove(group, sub); last {
		if err := b.t.unsubscribe(ctx, group); err != nil {
			return fmt.Errorf("%s unsubscribe %s: %w", b.t.name(), group, err)
		}
		log.Debug().Str("module", "bus").Str("transport", b.t.name()).Str("group", group).Msg("broker subscription closed")
	}
	return nil
}

func (b *remoteBus) Publish(ctx context.Context, group string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.t.publish(ctx, group, payload); err != nil {
		observability.IncBusPublishError(b.t.name())
		return fmt.Errorf("%s publish %s: %w", b.t.name(), group, err)
	}
	observability.IncBusPublish(b.t.name(), string(event.Kind))
	return nil
}

// dispatch decodes an inbound payload and hands it to local subscribers.
func (b *remoteBus) dispatch(group string, payload []byte) {
	if !b.reg.has(group) {
		return
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Warn().Err(err).Str("module", "bus").Str("transport", b.t.name()).Str("group", group).Msg("dropping undecodable event")
		return
	}
	n := b.reg.deliver(group, event)
	observability.AddBusDelivered(b.t.name(), n)
}

func (b *remoteBus) Groups() map[string]int {
	return b.reg.counts()
}

func (b *remoteBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reg.clear()
	return b.t.close()
}
