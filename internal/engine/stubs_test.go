package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/settings"
)

type memberKey struct{ chatID, userID int64 }

type stubStore struct {
	mu sync.Mutex

	chats        map[int64]*settings.ChatSettings
	states       map[memberKey]*db.UserState
	captchas     map[memberKey]db.PendingCaptcha
	joinRequests map[memberKey]db.JoinRequest

	ensureCalls int
	warningErr  error
}

func newStubStore() *stubStore {
	return &stubStore{
		chats:        map[int64]*settings.ChatSettings{},
		states:       map[memberKey]*db.UserState{},
		captchas:     map[memberKey]db.PendingCaptcha{},
		joinRequests: map[memberKey]db.JoinRequest{},
	}
}

func (s *stubStore) withChat(chatID int64, mutate func(*settings.ChatSettings)) *stubStore {
	cfg := settings.Default()
	cfg.Timezone = "UTC"
	cfg.NightMode.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	s.chats[chatID] = cfg
	return s
}

func (s *stubStore) state(chatID, userID int64) *db.UserState {
	key := memberKey{chatID, userID}
	st, ok := s.states[key]
	if !ok {
		st = &db.UserState{ChatID: chatID, UserID: userID}
		s.states[key] = st
	}
	return st
}

func (s *stubStore) EnsureChat(_ context.Context, chatID int64, _, _ string) (*settings.ChatSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalls++
	cfg, ok := s.chats[chatID]
	if !ok {
		cfg = settings.Default()
		s.chats[chatID] = cfg
	}
	return cfg.Clone(), nil
}

func (s *stubStore) GetSettings(_ context.Context, chatID int64) (*settings.ChatSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("chat %d: %w", chatID, ngerrors.ErrChatNotRegistered)
	}
	return cfg.Clone(), nil
}

func (s *stubStore) GetUserState(_ context.Context, chatID, userID int64) (*db.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := *s.state(chatID, userID)
	return &st, nil
}

func (s *stubStore) AddWarning(_ context.Context, chatID, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warningErr != nil {
		return 0, s.warningErr
	}
	st := s.state(chatID, userID)
	st.Warnings++
	return st.Warnings, nil
}

func (s *stubStore) AdjustReputation(_ context.Context, chatID, userID int64, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(chatID, userID)
	st.Reputation += delta
	return st.Reputation, nil
}

func (s *stubStore) UpsertJoinRequest(_ context.Context, req *db.JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *req
	stored.Status = db.JoinRequestPending
	s.joinRequests[memberKey{req.ChatID, req.UserID}] = stored
	return nil
}

func (s *stubStore) SetJoinRequestStatus(_ context.Context, chatID, userID int64, status db.JoinRequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{chatID, userID}
	req, ok := s.joinRequests[key]
	if !ok {
		return ngerrors.ErrNotFound
	}
	if !req.Status.CanTransition(status) {
		return ngerrors.ErrInvalidTransition
	}
	req.Status = status
	req.ExpiresAt = nil
	s.joinRequests[key] = req
	return nil
}

func (s *stubStore) GetExpiredJoinRequests(_ context.Context, now time.Time) ([]*db.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.JoinRequest
	for _, req := range s.joinRequests {
		if req.Status == db.JoinRequestPending && req.ExpiresAt != nil && req.ExpiresAt.Before(now) {
			req := req
			out = append(out, &req)
		}
	}
	return out, nil
}

func (s *stubStore) CreateCaptcha(_ context.Context, c *db.PendingCaptcha) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captchas[memberKey{c.ChatID, c.UserID}] = *c
	return nil
}

func (s *stubStore) GetCaptcha(_ context.Context, chatID, userID int64) (*db.PendingCaptcha, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.captchas[memberKey{chatID, userID}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *stubStore) UpdateCaptcha(_ context.Context, c *db.PendingCaptcha) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captchas[memberKey{c.ChatID, c.UserID}] = *c
	return nil
}

func (s *stubStore) DeleteCaptcha(_ context.Context, chatID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.captchas, memberKey{chatID, userID})
	return nil
}

func (s *stubStore) GetExpiredCaptchas(_ context.Context, now time.Time) ([]*db.PendingCaptcha, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.PendingCaptcha
	for _, c := range s.captchas {
		if c.ExpiresAt.Before(now) {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *stubStore) pendingToken(chatID, userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captchas[memberKey{chatID, userID}].Token
}

type stubDirectory struct {
	mu     sync.Mutex
	admins map[memberKey]bool
	names  map[int64]string
	err    error
	calls  int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{admins: map[memberKey]bool{}, names: map[int64]string{}}
}

func (d *stubDirectory) IsAdmin(_ context.Context, chatID, userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return false, d.err
	}
	return d.admins[memberKey{chatID, userID}], nil
}

func (d *stubDirectory) DisplayName(_ context.Context, _, userID int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.names[userID], nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingExecutor struct {
	mu      sync.Mutex
	results map[int64][]*moderation.Result
}

func (r *recordingExecutor) Execute(_ context.Context, chatID int64, res *moderation.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[int64][]*moderation.Result{}
	}
	r.results[chatID] = append(r.results[chatID], res)
	return nil
}

type recordingDecliner struct {
	mu       sync.Mutex
	declined []memberKey
}

func (r *recordingDecliner) DeclineJoinRequest(_ context.Context, chatID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.declined = append(r.declined, memberKey{chatID, userID})
	return nil
}

func kinds(res *moderation.Result) []moderation.Kind {
	out := make([]moderation.Kind, 0, len(res.Actions))
	for _, a := range res.Actions {
		out = append(out, a.Kind())
	}
	return out
}
