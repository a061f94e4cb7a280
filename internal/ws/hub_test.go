package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustchat/internal/models"
	"trustchat/internal/presence"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	failing bool
	closed  bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) events(t *testing.T) []models.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Event, 0, len(f.frames))
	for _, raw := range f.frames {
		var e models.Event
		require.NoError(t, json.Unmarshal(raw, &e))
		out = append(out, e)
	}
	return out
}

func (f *fakeConn) eventsOfType(t *testing.T, typ string) []models.Event {
	var out []models.Event
	for _, e := range f.events(t) {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connect(hub *Hub, userID, connID string) (*Client, *fakeConn) {
	fc := &fakeConn{}
	client := NewClient(fc, ConnInfo{ConnID: connID, UserID: userID, ConnectedAt: time.Now()})
	hub.Register(client)
	return client, fc
}

func TestRegisterBroadcastsOnlineUsers(t *testing.T) {
	hub := NewHub(presence.NewMap(), testLogger())

	_, aliceConn := connect(hub, "alice", "c1")
	_, _ = connect(hub, "bob", "c2")

	online := aliceConn.eventsOfType(t, models.EventOnlineUsers)
	require.Len(t, online, 2)
	assert.ElementsMatch(t, []any{"alice", "bob"}, online[1].Data)
}

// gatedRegistry holds the Connect call for one user after the registry has
// been updated, until release is closed.
type gatedRegistry struct {
	presence.Registry
	user    string
	reached chan struct{}
	release chan struct{}
}

func (g *gatedRegistry) Connect(userID, connID string) []string {
	online := g.Registry.Connect(userID, connID)
	if userID == g.user {
		close(g.reached)
		<-g.release
	}
	return online
}

func TestConcurrentRegisterAnnouncesLatestOnlineSet(t *testing.T) {
	reg := &gatedRegistry{
		Registry: presence.NewMap(),
		user:     "alice",
		reached:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	hub := NewHub(reg, testLogger())
	_, obsConn := connect(hub, "obs", "c0")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		connect(hub, "alice", "c1")
	}()
	<-reg.reached
	go func() {
		defer wg.Done()
		connect(hub, "bob", "c2")
	}()
	time.Sleep(50 * time.Millisecond)
	close(reg.release)
	wg.Wait()

	online := obsConn.eventsOfType(t, models.EventOnlineUsers)
	require.NotEmpty(t, online)
	assert.ElementsMatch(t, []any{"alice", "bob", "obs"}, online[len(online)-1].Data)
}

func TestUnregisterStaleConnectionKeepsPresence(t *testing.T) {
	reg := presence.NewMap()
	hub := NewHub(reg, testLogger())

	first, _ := connect(hub, "alice", "c1")
	_, _ = connect(hub, "alice", "c2")

	hub.Unregister(first)

	connID, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c2", connID)
}

func TestUnregisterTwiceIsNoop(t *testing.T) {
	reg := presence.NewMap()
	hub := NewHub(reg, testLogger())
	client, _ := connect(hub, "alice", "c1")
	_, bobConn := connect(hub, "bob", "c2")

	hub.Unregister(client)
	before := len(bobConn.eventsOfType(t, models.EventOnlineUsers))
	hub.Unregister(client)

	assert.Len(t, bobConn.eventsOfType(t, models.EventOnlineUsers), before)
	assert.Equal(t, []string{"bob"}, reg.ListOnline())
}

func TestBroadcastRoomReachesOnlyJoinedConnections(t *testing.T) {
	hub := NewHub(presence.NewMap(), testLogger())
	alice, aliceConn := connect(hub, "alice", "c1")
	_, bobConn := connect(hub, "bob", "c2")

	room := models.GroupRoom("g1")
	require.True(t, hub.Join(alice.ID(), room))
	require.True(t, hub.Join(alice.ID(), room))

	n := hub.BroadcastRoom(room, models.Event{Type: models.EventNewGroupMessage, Data: "hi"})

	assert.Equal(t, 1, n)
	assert.Len(t, aliceConn.eventsOfType(t, models.EventNewGroupMessage), 1)
	assert.Empty(t, bobConn.eventsOfType(t, models.EventNewGroupMessage))
}

func TestJoinUnknownConnection(t *testing.T) {
	hub := NewHub(presence.NewMap(), testLogger())
	assert.False(t, hub.Join("missing", models.GroupRoom("g1")))
}

func TestUnregisterLeavesRooms(t *testing.T) {
	hub := NewHub(presence.NewMap(), testLogger())
	alice, _ := connect(hub, "alice", "c1")
	room := models.GroupRoom("g1")
	hub.Join(alice.ID(), room)

	hub.Unregister(alice)

	assert.False(t, hub.InRoom(alice.ID(), room))
	assert.Equal(t, 0, hub.BroadcastRoom(room, models.Event{Type: models.EventNewGroupMessage}))
}

func TestSendToUserUsesPresence(t *testing.T) {
	hub := NewHub(presence.NewMap(), testLogger())
	_, old := connect(hub, "alice", "c1")
	_, current := connect(hub, "alice", "c2")

	ok := hub.SendToUser("alice", models.Event{Type: models.EventNewMessage, Data: "x"})

	assert.True(t, ok)
	assert.Len(t, current.eventsOfType(t, models.EventNewMessage), 1)
	assert.Empty(t, old.eventsOfType(t, models.EventNewMessage))
	assert.False(t, hub.SendToUser("nobody", models.Event{Type: models.EventNewMessage}))
}

func TestFailedWriteClosesConnection(t *testing.T) {
	hub := NewHub(presence.NewMap(), testLogger())
	_, conn := connect(hub, "alice", "c1")
	conn.failing = true

	assert.False(t, hub.SendToUser("alice", models.Event{Type: models.EventNewMessage}))
	assert.True(t, conn.closed)
}

type stubVerifier struct{}

func (stubVerifier) Verify(string) (string, error) { return "alice", nil }

type stubMembership struct{ member bool }

func (s stubMembership) IsMember(context.Context, string, string) (bool, error) {
	return s.member, nil
}

func TestJoinGroupFrameRequiresMembership(t *testing.T) {
	hub := NewHub(presence.NewMap(), testLogger())
	client, _ := connect(hub, "alice", "c1")
	frame := []byte(`{"type":"joinGroup","groupId":"g1"}`)

	NewHandler(hub, stubVerifier{}, stubMembership{member: false}, testLogger()).handleFrame(context.Background(), client, frame)
	assert.False(t, hub.InRoom(client.ID(), models.GroupRoom("g1")))

	NewHandler(hub, stubVerifier{}, stubMembership{member: true}, testLogger()).handleFrame(context.Background(), client, frame)
	assert.True(t, hub.InRoom(client.ID(), models.GroupRoom("g1")))
}

type scriptedReader struct {
	frames [][]byte
}

func (s *scriptedReader) ReadMessage() (int, []byte, error) {
	if len(s.frames) == 0 {
		return 0, nil, io.EOF
	}
	next := s.frames[0]
	s.frames = s.frames[1:]
	return 1, next, nil
}

func TestReadLoopUnregistersOnClose(t *testing.T) {
	reg := presence.NewMap()
	hub := NewHub(reg, testLogger())
	client, conn := connect(hub, "alice", "c1")
	reader := &scriptedReader{frames: [][]byte{[]byte(`{"type":"joinGroup","groupId":"g1"}`)}}

	NewHandler(hub, stubVerifier{}, stubMembership{member: true}, testLogger()).readLoop(context.Background(), reader, client)

	_, ok := reg.Lookup("alice")
	assert.False(t, ok)
	assert.False(t, hub.InRoom(client.ID(), models.GroupRoom("g1")))
	assert.True(t, conn.closed)
}
