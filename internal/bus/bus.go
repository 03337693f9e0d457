// Package bus fans events out to every connection subscribed to a group,
// whether the connection lives in this process or in another worker.
//
// Events published by one publisher reach each subscriber in publish order.
// Publishes from different publishers may interleave differently at
// different subscribers; there is no global total order.
package bus

import (
	"context"
	"sync"
)

// Subscriber receives group events. Deliver must not block.
type Subscriber interface {
	ID() string
	Deliver(Event)
}

// Bus is the group publish/subscribe fabric.
type Bus interface {
	Subscribe(ctx context.Context, group string, sub Subscriber) error
	// Unsubscribe is idempotent.
	Unsubscribe(ctx context.Context, group string, sub Subscriber) error
	Publish(ctx context.Context, group string, event Event) error
	// Groups reports local subscriber counts per group.
	Groups() map[string]int
	Close() error
}

// registry maintains the subscribers living in this process.
type registry struct {
	groups map[string]map[string]Subscriber
	mu     sync.RWMutex
}

func newRegistry() *registry {
	return &registry{groups: make(map[string]map[string]Subscriber)}
}

// add registers sub and reports whether it is the group's first local subscriber.
func (r *registry) add(group string, sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.groups[group]
	if !ok {
		subs = make(map[string]Subscriber)
		r.groups[group] = subs
	}
	subs[sub.ID()] = sub
	return !ok
}

// remove drops sub and reports whether the group has no local subscribers left.
// Removing an unknown subscriber reports false.
func (r *registry) remove(group string, sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.groups[group]
	if !ok {
		return false
	}
	if _, ok := subs[sub.ID()]; !ok {
		return false
	}
	delete(subs, sub.ID())
	if len(subs) == 0 {
		delete(r.groups, group)
		return true
	}
	return false
}

func (r *registry) has(group string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[group]
	return ok
}

// deliver hands ev to every local subscriber of group and returns how many got it.
func (r *registry) deliver(group string, ev Event) int {
	r.mu.RLock()
	subs := make([]Subscriber, 0, len(r.groups[group]))
	for _, sub := range r.groups[group] {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	for _, sub := range subs {
		sub.Deliver(ev)
	}
	return len(subs)
}

func (r *registry) counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.groups))
	for group, subs := range r.groups {
		out[group] = len(subs)
	}
	return out
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = make(map[string]map[string]Subscriber)
}
