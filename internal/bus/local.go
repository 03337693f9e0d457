package bus

import (
	"context"

	"chatroom-service/internal/observability"
)

// LocalBus delivers within the current process only.
type LocalBus struct {
	reg *registry
}

// NewLocalBus creates an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{reg: newRegistry()}
}

func (b *LocalBus) Subscribe(_ context.Context, group string, sub Subscriber) error {
	b.reg.add(group, sub)
	return nil
}

func (b *LocalBus) Unsubscribe(_ context.Context, group string, sub Subscriber) error {
	b.reg.remove(group, sub)
	return nil
}

// Publish delivers synchronously, so a publisher's events keep their order.
func (b *LocalBus) Publish(_ context.Context, group string, event Event) error {
	n := b.reg.deliver(group, event)
	observability.IncBusPublish("local", string(event.Kind))
	observability.AddBusDelivered("local", n)
	return nil
}

func (b *LocalBus) Groups() map[string]int {
	return b.reg.counts()
}

func (b *LocalBus) Close() error {
	b.reg.clear()
	return nil
}
