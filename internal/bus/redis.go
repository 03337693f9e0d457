package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedisBus creates a bus over Redis pub/sub, one channel per group.
func NewRedisBus(client *redis.Client, keyPrefix string) Bus {
	t := &redisTransport{client: client, prefix: keyPrefix + "bus:", subs: make(map[string]*redisSubscription)}
	b := newRemoteBus(t)
	t.dispatch = b.dispatch
	return b
}

type redisTransport struct {
	client   *redis.Client
	prefix   string
	dispatch func(group string, payload []byte)

	mu   sync.Mutex
	subs map[string]*redisSubscription
}

// redisSubscription is one group's pub/sub connection and its reader.
type redisSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

func (s *redisSubscription) close() error {
	err := s.pubsub.Close()
	<-s.done
	return err
}

func (t *redisTransport) name() string { return "redis" }

func (t *redisTransport) channel(group string) string {
	return t.prefix + group
}

// subscribe returns once Redis has confirmed the subscription, so a publish
// issued afterwards reaches this worker.
func (t *redisTransport) subscribe(ctx context.Context, group string) error {
	pubsub := t.client.Subscribe(ctx, t.channel(group))
	reply, err := pubsub.Receive(ctx)
	if err != nil {
		_ = pubsub.Close()
		return err
	}
	if _, ok := reply.(*redis.Subscription); !ok {
		_ = pubsub.Close()
		return fmt.Errorf("unexpected subscribe reply %T", reply)
	}

	sub := &redisSubscription{pubsub: pubsub, done: make(chan struct{})}
	go t.receive(sub)

	t.mu.Lock()
	prev := t.subs[group]
	t.subs[group] = sub
	t.mu.Unlock()
	if prev != nil {
		_ = prev.close()
	}
	return nil
}

func (t *redisTransport) receive(sub *redisSubscription) {
	defer close(sub.done)
	for msg := range sub.pubsub.Channel() {
		group := strings.TrimPrefix(msg.Channel, t.prefix)
		t.dispatch(group, []byte(msg.Payload))
	}
	log.Debug().Str("module", "bus").Str("transport", "redis").Msg("receive loop stopped")
}

func (t *redisTransport) unsubscribe(_ context.Context, group string) error {
	t.mu.Lock()
	sub, ok := t.subs[group]
	delete(t.subs, group)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.close()
}

func (t *redisTransport) publish(ctx context.Context, group string, payload []byte) error {
	return t.client.Publish(ctx, t.channel(group), payload).Err()
}

func (t *redisTransport) close() error {
	t.mu.Lock()
	subs := t.subs
	t.subs = make(map[string]*redisSubscription)
	t.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
