package chat

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	id     string
	mu     sync.Mutex
	got    [][]byte
	closed atomic.Bool
}

func newFakeSocket(id string) *fakeSocket { return &fakeSocket{id: id} }

func (f *fakeSocket) ID() string { return f.id }

func (f *fakeSocket) Send(p []byte) bool {
	if f.closed.Load() {
		return false
	}
	f.mu.Lock()
	f.got = append(f.got, p)
	f.mu.Unlock()
	return true
}

func (f *fakeSocket) IsOpen() bool { return !f.closed.Load() }
func (f *fakeSocket) Close()       { f.closed.Store(true) }

func (f *fakeSocket) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.got))
	for i, b := range f.got {
		out[i] = string(b)
	}
	return out
}

type hookLog struct {
	mu     sync.Mutex
	events []string
}

func (h *hookLog) Joined(room, userID string) { h.add("+" + room + "/" + userID) }
func (h *hookLog) Left(room, userID string)   { h.add("-" + room + "/" + userID) }
func (h *hookLog) add(s string) {
	h.mu.Lock()
	h.events = append(h.events, s)
	h.mu.Unlock()
}

func TestRegisterEvictsSameUser(t *testing.T) {
	r := NewRoomRegistry(nil)
	room := RoomKeyOf("p1", "t1")
	a, b := newFakeSocket("a"), newFakeSocket("b")

	assert.Nil(t, r.Register(room, "t1", a))
	evicted := r.Register(room, "t1", b)
	require.NotNil(t, evicted)
	assert.Equal(t, "a", evicted.ID())
	assert.True(t, a.IsOpen(), "evicted socket is left open")

	assert.Equal(t, 1, r.Broadcast(room, []byte("x")))
	assert.Empty(t, a.frames())
	assert.Equal(t, []string{"x"}, b.frames())

	// the stale socket going away must not remove the new entry
	assert.False(t, r.UnregisterSocket(a))
	assert.Equal(t, []string{"t1"}, r.Members(room))
}

func TestUnregisterIdempotent(t *testing.T) {
	r := NewRoomRegistry(nil)
	room := RoomKeyOf("p1", "t1")
	s := newFakeSocket("s")
	r.Register(room, "t1", s)

	assert.True(t, r.UnregisterSocket(s))
	assert.False(t, r.UnregisterSocket(s))
	assert.False(t, r.UnregisterSocket(newFakeSocket("unknown")))
	assert.Zero(t, r.Len())
}

func TestBroadcastSkipsClosed(t *testing.T) {
	r := NewRoomRegistry(nil)
	room := RoomKeyOf("p1", "t1")
	tenant, owner := newFakeSocket("t"), newFakeSocket("o")
	r.Register(room, "t1", tenant)
	r.Register(room, "o1", owner)
	tenant.Close()

	assert.Equal(t, 1, r.Broadcast(room, []byte("hello")))
	assert.Equal(t, []string{"hello"}, owner.frames())
	assert.Zero(t, r.Broadcast(RoomKeyOf("p2", "t1"), []byte("nobody")))
}

func TestRoomsAreIsolated(t *testing.T) {
	r := NewRoomRegistry(nil)
	a, b := newFakeSocket("a"), newFakeSocket("b")
	r.Register(RoomKeyOf("p1", "t1"), "t1", a)
	r.Register(RoomKeyOf("p1", "t2"), "t2", b)

	r.Broadcast(RoomKeyOf("p1", "t1"), []byte("one"))
	assert.Equal(t, []string{"one"}, a.frames())
	assert.Empty(t, b.frames())
	assert.Equal(t, 2, r.Len())
}

func TestSocketMovesBetweenRooms(t *testing.T) {
	hook := &hookLog{}
	r := NewRoomRegistry(hook)
	s := newFakeSocket("s")
	r1, r2 := RoomKeyOf("p1", "t1"), RoomKeyOf("p2", "t1")

	r.Register(r1, "o1", s)
	r.Register(r2, "o1", s)

	assert.Empty(t, r.Members(r1))
	assert.Equal(t, []string{"o1"}, r.Members(r2))
	room, ok := r.Lookup(s)
	assert.True(t, ok)
	assert.Equal(t, r2, room)

	r.UnregisterSocket(s)
	assert.Equal(t, []string{"+p1|t1/o1", "-p1|t1/o1", "+p2|t1/o1", "-p2|t1/o1"}, hook.events)
}

// gatedSet mirrors presence like the Redis tracker; its first Left stalls
// until released.
type gatedSet struct {
	mu       sync.Mutex
	members  map[string]bool
	once     sync.Once
	stalled  chan struct{}
	released chan struct{}
}

func (g *gatedSet) Joined(room, userID string) {
	g.mu.Lock()
	g.members[room+"/"+userID] = true
	g.mu.Unlock()
}

func (g *gatedSet) Left(room, userID string) {
	g.once.Do(func() {
		close(g.stalled)
		<-g.released
	})
	g.mu.Lock()
	delete(g.members, room+"/"+userID)
	g.mu.Unlock()
}

func (g *gatedSet) has(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.members[key]
}

func TestSlowLeaveDoesNotHideRejoin(t *testing.T) {
	hook := &gatedSet{members: map[string]bool{}, stalled: make(chan struct{}), released: make(chan struct{})}
	r := NewRoomRegistry(hook)
	room := RoomKeyOf("p1", "t1")
	a, b := newFakeSocket("a"), newFakeSocket("b")
	r.Register(room, "t1", a)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.UnregisterSocket(a)
	}()
	<-hook.stalled

	go func() {
		defer wg.Done()
		r.Register(room, "t1", b)
	}()
	require.Eventually(t, func() bool { return len(r.Members(room)) == 1 }, time.Second, time.Millisecond)

	close(hook.released)
	wg.Wait()
	assert.True(t, hook.has(string(room)+"/t1"))
}

func TestEnterQueuesSnapshotFirst(t *testing.T) {
	r := NewRoomRegistry(nil)
	room := RoomKeyOf("p1", "t1")
	s := newFakeSocket("s")

	r.Enter(room, "t1", s, []byte("history"))
	r.Broadcast(room, []byte("m1"))
	assert.Equal(t, []string{"history", "m1"}, s.frames())
}

func TestBroadcastOrderPerRoom(t *testing.T) {
	r := NewRoomRegistry(nil)
	room := RoomKeyOf("p1", "t1")
	a, b := newFakeSocket("a"), newFakeSocket("b")
	r.Register(room, "t1", a)
	r.Register(room, "o1", b)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var sent []string
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mu.Lock()
			p := strconv.Itoa(i)
			sent = append(sent, p)
			r.Broadcast(room, []byte(p))
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, sent, a.frames())
	assert.Equal(t, a.frames(), b.frames())
}
