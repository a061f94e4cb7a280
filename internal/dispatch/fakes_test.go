package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"trustchat/internal/models"
	"trustchat/internal/repositories"
	"trustchat/internal/telemetry"
)

type memMessages struct {
	mu     sync.Mutex
	seq    int
	byID   map[string]*models.Message
	order  []string
	failOn string
}

func newMemMessages() *memMessages { return &memMessages{byID: map[string]*models.Message{}} }

func (s *memMessages) Create(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "create" {
		return models.Message{}, errors.New("db down")
	}
	s.seq++
	msg.ID = fmt.Sprintf("m%d", s.seq)
	msg.CreatedAt = time.Unix(int64(s.seq), 0)
	stored := msg
	s.byID[msg.ID] = &stored
	s.order = append(s.order, msg.ID)
	return msg, nil
}

func (s *memMessages) Get(_ context.Context, id string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return *m, nil
}

func (s *memMessages) Conversation(_ context.Context, a, b string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Message{}
	for _, id := range s.order {
		m := s.byID[id]
		rid, ok := m.ReceiverID()
		if !ok {
			continue
		}
		if (m.SenderID == a && rid == b) || (m.SenderID == b && rid == a) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memMessages) MarkConversationSeen(_ context.Context, senderID, receiverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.byID {
		if rid, ok := m.ReceiverID(); ok && m.SenderID == senderID && rid == receiverID && !m.Seen {
			m.Seen = true
			n++
		}
	}
	return n, nil
}

func (s *memMessages) MarkSeen(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return repositories.ErrMessageNotFound
	}
	m.Seen = true
	return nil
}

func (s *memMessages) SetScam(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return repositories.ErrMessageNotFound
	}
	m.IsScam = true
	return nil
}

func (s *memMessages) ListGroupMessages(_ context.Context, groupID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Message{}
	for _, id := range s.order {
		if gid, ok := s.byID[id].GroupID(); ok && gid == groupID {
			out = append(out, *s.byID[id])
		}
	}
	return out, nil
}

func (s *memMessages) UnseenCounts(_ context.Context, receiverID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, m := range s.byID {
		if rid, ok := m.ReceiverID(); ok && rid == receiverID && !m.Seen {
			out[m.SenderID]++
		}
	}
	return out, nil
}

func (s *memMessages) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

type memGroups struct {
	mu     sync.Mutex
	seq    int
	groups map[string]*models.ChatGroup
}

func newMemGroups() *memGroups { return &memGroups{groups: map[string]*models.ChatGroup{}} }

func (s *memGroups) Create(_ context.Context, g models.ChatGroup) (models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	g.ID = fmt.Sprintf("g%d", s.seq)
	g.Members = append([]string(nil), g.Members...)
	stored := g
	s.groups[g.ID] = &stored
	return g, nil
}

func (s *memGroups) Get(_ context.Context, id string) (models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return models.ChatGroup{}, repositories.ErrGroupNotFound
	}
	out := *g
	out.Members = append([]string(nil), g.Members...)
	return out, nil
}

func (s *memGroups) AddMember(_ context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	if g.IsMember(userID) {
		return repositories.ErrAlreadyMember
	}
	g.Members = append(g.Members, userID)
	return nil
}

func (s *memGroups) Update(_ context.Context, groupID string, name, pic *string) (models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return models.ChatGroup{}, repositories.ErrGroupNotFound
	}
	if name != nil {
		g.Name = *name
	}
	if pic != nil {
		g.GroupPic = *pic
	}
	out := *g
	out.Members = append([]string(nil), g.Members...)
	return out, nil
}

func (s *memGroups) ListForUser(_ context.Context, userID string) ([]models.ChatGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ChatGroup{}
	for _, g := range s.groups {
		if g.IsMember(userID) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memUsers struct {
	users map[string]models.User
	fail  bool
}

func (d *memUsers) Resolve(_ context.Context, ids []string) (map[string]models.Sender, error) {
	if d.fail {
		return nil, errors.New("directory unavailable")
	}
	out := map[string]models.Sender{}
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u.Projection()
		}
	}
	return out, nil
}

func (d *memUsers) ListExcept(_ context.Context, userID string) ([]models.User, error) {
	out := []models.User{}
	for id, u := range d.users {
		if id != userID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

type stubMedia struct {
	fail    bool
	err     error
	uploads int
}

func (m *stubMedia) Upload(_ context.Context, raw string) (string, error) {
	m.uploads++
	if m.err != nil {
		return "", m.err
	}
	if m.fail {
		return "", errors.New("bucket unreachable")
	}
	return "https://cdn.test/" + raw, nil
}

type delivery struct {
	userID string
	room   string
	event  models.Event
}

// recordingNotifier treats the users in online as connected and the rooms in
// joined as having the given number of listeners.
type recordingNotifier struct {
	mu     sync.Mutex
	online map[string]bool
	joined map[string]int
	sent   []delivery
}

func newRecordingNotifier(online ...string) *recordingNotifier {
	n := &recordingNotifier{online: map[string]bool{}, joined: map[string]int{}}
	for _, id := range online {
		n.online[id] = true
	}
	return n
}

func (n *recordingNotifier) SendToUser(userID string, event models.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return false
	}
	n.sent = append(n.sent, delivery{userID: userID, event: event})
	return true
}

func (n *recordingNotifier) BroadcastRoom(room string, event models.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, delivery{room: room, event: event})
	return n.joined[room]
}

func (n *recordingNotifier) ofType(eventType string) []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []delivery
	for _, d := range n.sent {
		if d.event.Type == eventType {
			out = append(out, d)
		}
	}
	return out
}

type recordingScheduler struct {
	mu     sync.Mutex
	jobs   []string
	reject bool
}

func (s *recordingScheduler) Submit(messageID, _ string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.jobs = append(s.jobs, messageID)
	return true
}

type fixture struct {
	engine    *Engine
	messages  *memMessages
	groups    *memGroups
	users     *memUsers
	media     *stubMedia
	notifier  *recordingNotifier
	scheduler *recordingScheduler
}

func newFixture(online ...string) *fixture {
	f := &fixture{
		messages: newMemMessages(),
		groups:   newMemGroups(),
		users: &memUsers{users: map[string]models.User{
			"alice": {ID: "alice", FullName: "Alice"},
			"bob":   {ID: "bob", FullName: "Bob"},
			"carol": {ID: "carol", FullName: "Carol"},
			"dave":  {ID: "dave", FullName: "Dave"},
		}},
		media:     &stubMedia{},
		notifier:  newRecordingNotifier(online...),
		scheduler: &recordingScheduler{},
	}
	f.engine = NewEngine(Deps{
		Messages:  f.messages,
		Groups:    f.groups,
		Users:     f.users,
		Media:     f.media,
		Notifier:  f.notifier,
		Scheduler: f.scheduler,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []telemetry.Entry
}

func (a *recordingAuditor) Record(_ context.Context, entry telemetry.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}
