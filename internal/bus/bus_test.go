package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatroom-service/internal/models"
)

type recorder struct {
	id     string
	mu     sync.Mutex
	events []Event
}

func newRecorder(id string) *recorder { return &recorder{id: id} }

func (r *recorder) ID() string { return r.id }

func (r *recorder) Deliver(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

var lobby = models.RoomRef{Kind: models.RoomPublic, ID: 1}

func textEvent(text string) Event {
	return NewMessageEvent(models.Message{ID: 1, RoomKind: lobby.Kind, RoomID: lobby.ID, Content: text}, models.Participant{ID: 1, Username: "alice"})
}

func TestLocalBusAddAndRemoveSubscribers(t *testing.T) {
	b := NewLocalBus()
	ctx := context.Background()
	a, c := newRecorder("a"), newRecorder("c")

	require.NoError(t, b.Subscribe(ctx, lobby.GroupName(), a))
	require.NoError(t, b.Subscribe(ctx, lobby.GroupName(), c))
	assert.Equal(t, map[string]int{"public:1": 2}, b.Groups())

	require.NoError(t, b.Unsubscribe(ctx, lobby.GroupName(), a))
	require.NoError(t, b.Unsubscribe(ctx, lobby.GroupName(), a), "unsubscribe is idempotent")
	require.NoError(t, b.Unsubscribe(ctx, "public:404", a))
	assert.Equal(t, map[string]int{"public:1": 1}, b.Groups())

	require.NoError(t, b.Unsubscribe(ctx, lobby.GroupName(), c))
	assert.Empty(t, b.Groups())
}

func TestLocalBusDeliversOnlyToGroup(t *testing.T) {
	b := NewLocalBus()
	ctx := context.Background()
	in, out := newRecorder("in"), newRecorder("out")
	require.NoError(t, b.Subscribe(ctx, "public:1", in))
	require.NoError(t, b.Subscribe(ctx, "public:2", out))

	require.NoError(t, b.Publish(ctx, "public:1", textEvent("hi")))

	require.Len(t, in.received(), 1)
	assert.Equal(t, "hi", in.received()[0].Message.Text)
	assert.Empty(t, out.received())
}

func TestLocalBusPreservesPublisherOrder(t *testing.T) {
	b := NewLocalBus()
	ctx := context.Background()
	subs := []*recorder{newRecorder("1"), newRecorder("2"), newRecorder("3")}
	for _, s := range subs {
		require.NoError(t, b.Subscribe(ctx, lobby.GroupName(), s))
	}

	var wg sync.WaitGroup
	for p := 0; p < 3; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, b.Publish(ctx, lobby.GroupName(), textEvent(fmt.Sprintf("%d:%d", p, i))))
			}
		}(p)
	}
	wg.Wait()

	for _, s := range subs {
		got := s.received()
		require.Len(t, got, 150)
		next := map[string]int{}
		for _, ev := range got {
			var p, i int
			_, err := fmt.Sscanf(ev.Message.Text, "%d:%d", &p, &i)
			require.NoError(t, err)
			key := fmt.Sprint(p)
			assert.Equal(t, next[key], i, "publisher %d out of order at subscriber %s", p, s.id)
			next[key] = i + 1
		}
	}
}

type fakeTransport struct {
	mu           sync.Mutex
	subscribed   map[string]int
	unsubscribed map[string]int
	published    [][]byte
	failSub      error
	failPub      error
	closed       bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subscribed: map[string]int{}, unsubscribed: map[string]int{}}
}

func (f *fakeTransport) name() string { return "fake" }

func (f *fakeTransport) subscribe(_ context.Context, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSub != nil {
		return f.failSub
	}
	f.subscribed[group]++
	return nil
}

func (f *fakeTransport) unsubscribe(_ context.Context, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed[group]++
	return nil
}

func (f *fakeTransport) publish(_ context.Context, _ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPub != nil {
		return f.failPub
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeTransport) close() error {
	f.closed = true
	return nil
}

func TestRemoteBusHoldsOneBrokerSubscriptionPerGroup(t *testing.T) {
	ft := newFakeTransport()
	b := newRemoteBus(ft)
	ctx := context.Background()
	a, c := newRecorder("a"), newRecorder("c")

	require.NoError(t, b.Subscribe(ctx, "public:1", a))
	require.NoError(t, b.Subscribe(ctx, "public:1", c))
	assert.Equal(t, 1, ft.subscribed["public:1"])

	require.NoError(t, b.Unsubscribe(ctx, "public:1", a))
	assert.Zero(t, ft.unsubscribed["public:1"])
	require.NoError(t, b.Unsubscribe(ctx, "public:1", c))
	require.NoError(t, b.Unsubscribe(ctx, "public:1", c))
	assert.Equal(t, 1, ft.unsubscribed["public:1"])
}

func TestRemoteBusSubscribeFailureRollsBack(t *testing.T) {
	ft := newFakeTransport()
	ft.failSub = errors.New("broker down")
	b := newRemoteBus(ft)

	err := b.Subscribe(context.Background(), "public:1", newRecorder("a"))
	require.Error(t, err)
	assert.Empty(t, b.Groups())
}

func TestRemoteBusRoundTripsEventsThroughTransport(t *testing.T) {
	ft := newFakeTransport()
	b := newRemoteBus(ft)
	ctx := context.Background()
	sub := newRecorder("a")
	require.NoError(t, b.Subscribe(ctx, lobby.GroupName(), sub))

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := NewMessageEvent(models.Message{ID: 9, RoomKind: lobby.Kind, RoomID: lobby.ID, Content: "hello", CreatedAt: created},
		models.Participant{ID: 3, Username: "carol", AvatarURL: "/a.png"})
	require.NoError(t, b.Publish(ctx, lobby.GroupName(), ev))
	assert.Empty(t, sub.received(), "delivery happens when the broker echoes back")

	require.Len(t, ft.published, 1)
	b.dispatch(lobby.GroupName(), ft.published[0])
	b.dispatch("public:2", ft.published[0])
	b.dispatch(lobby.GroupName(), []byte("{not json"))

	got := sub.received()
	require.Len(t, got, 1)
	assert.Equal(t, EventMessage, got[0].Kind)
	assert.Equal(t, lobby, got[0].Room)
	assert.Equal(t, "hello", got[0].Message.Text)
	assert.Equal(t, "carol", got[0].Message.Username)
	assert.True(t, created.Equal(got[0].Message.CreatedAt))
}

func TestRemoteBusPublishError(t *testing.T) {
	ft := newFakeTransport()
	ft.failPub = errors.New("nope")
	b := newRemoteBus(ft)
	err := b.Publish(context.Background(), "public:1", NewPresenceEvent(lobby, 3))
	assert.ErrorIs(t, err, ft.failPub)
}

func TestRemoteBusClose(t *testing.T) {
	ft := newFakeTransport()
	b := newRemoteBus(ft)
	require.NoError(t, b.Subscribe(context.Background(), "public:1", newRecorder("a")))
	require.NoError(t, b.Close())
	assert.True(t, ft.closed)
	assert.Empty(t, b.Groups())
}
