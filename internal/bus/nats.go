package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

// NewNATSBus creates a bus over NATS core subjects "<prefix>.<group>".
func NewNATSBus(url, subjectPrefix string) (Bus, error) {
	nc, err := nats.Connect(url, nats.Name("chatroom-service"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	t := &natsTransport{nc: nc, prefix: strings.TrimSuffix(subjectPrefix, ".") + ".", subs: make(map[string]*nats.Subscription)}
	b := newRemoteBus(t)
	t.dispatch = b.dispatch
	return b, nil
}

type natsTransport struct {
	nc       *nats.Conn
	prefix   string
	dispatch func(group string, payload []byte)

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

func (t *natsTransport) name() string { return "nats" }

func (t *natsTransport) subscribe(_ context.Context, group string) error {
	sub, err := t.nc.Subscribe(t.prefix+group, func(msg *nats.Msg) {
		t.dispatch(strings.TrimPrefix(msg.Subject, t.prefix), msg.Data)
	})
	if err != nil {
		return err
	}
	// the subscription must be registered with the server before publishes count
	if err := t.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return err
	}
	t.mu.Lock()
	t.subs[group] = sub
	t.mu.Unlock()
	return nil
}

func (t *natsTransport) unsubscribe(_ context.Context, group string) error {
	t.mu.Lock()
	sub, ok := t.subs[group]
	delete(t.subs, group)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

func (t *natsTransport) publish(_ context.Context, group string, payload []byte) error {
	return t.nc.Publish(t.prefix+group, payload)
}

func (t *natsTransport) close() error {
	t.nc.Close()
	return nil
}
