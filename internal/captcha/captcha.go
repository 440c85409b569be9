// Package captcha issues onboarding challenges and verifies the answers
// against the pending record kept in the store.
package captcha

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/settings"
)

const (
	// TokenPrefix marks callback payloads that answer a challenge.
	TokenPrefix = "cap|"

	AnswerHuman = "human"
	AnswerBot   = "bot"

	mathOptions = 4
)

type Store interface {
	CreateCaptcha(ctx context.Context, captcha *db.PendingCaptcha) error
	GetCaptcha(ctx context.Context, chatID, userID int64) (*db.PendingCaptcha, error)
	UpdateCaptcha(ctx context.Context, captcha *db.PendingCaptcha) error
	DeleteCaptcha(ctx context.Context, chatID, userID int64) error
}

type (
	Option struct {
		Answer string
		Token  string
	}

	// Challenge is what the member is asked. Operands are set for math challenges only.
	Challenge struct {
		Kind      string
		Operands  [2]int
		Options   []Option
		ExpiresAt time.Time
	}

	// Verdict is the outcome of one answer. Missing means no challenge was pending,
	// which is also reported as Expired.
	Verdict struct {
		Success  bool
		Expired  bool
		Missing  bool
		Attempts int
	}

	Service struct {
		store Store
		now   func() time.Time

		randMu sync.Mutex
		rnd    *rand.Rand
	}

	ServiceOption func(*Service)
)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithRand(rnd *rand.Rand) ServiceOption {
	return func(s *Service) { s.rnd = rnd }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue replaces any pending challenge for the member with a fresh one.
func (s *Service) Issue(ctx context.Context, chatID, userID int64, kind string, timeout time.Duration) (*Challenge, error) {
	nonce := strings.ReplaceAll(uuid.New(), "-", "")[:12]
	challenge := &Challenge{Kind: kind}

	var correct string
	if kind == settings.CaptchaMath {
		a, b := s.intn(9)+1, s.intn(9)+1
		correct = strconv.Itoa(a + b)
		challenge.Operands = [2]int{a, b}

		answers := map[int]struct{}{a + b: {}}
		for len(answers) < mathOptions {
			answers[s.intn(18)+1] = struct{}{}
		}
		values := make([]int, 0, len(answers))
		for v := range answers {
			values = append(values, v)
		}
		sort.Ints(values)
		for _, v := range values {
			answer := strconv.Itoa(v)
			challenge.Options = append(challenge.Options, Option{Answer: answer, Token: MakeToken(nonce, answer)})
		}
	} else {
		challenge.Kind = settings.CaptchaButton
		correct = AnswerHuman
		challenge.Options = []Option{
			{Answer: AnswerHuman, Token: MakeToken(nonce, AnswerHuman)},
			{Answer: AnswerBot, Token: MakeToken(nonce, AnswerBot)},
		}
	}

	now := s.now()
	challenge.ExpiresAt = now.Add(timeout)
	record := &db.PendingCaptcha{
		ChatID:    chatID,
		UserID:    userID,
		Token:     MakeToken(nonce, correct),
		CreatedAt: now,
		ExpiresAt: challenge.ExpiresAt,
	}
	if err := s.store.CreateCaptcha(ctx, record); err != nil {
		return nil, errors.WithMessage(err, "cant store captcha")
	}
	return challenge, nil
}

// Verify checks an answer. Success and expiry clear the pending record; a wrong
// answer only bumps the attempt counter.
func (s *Service) Verify(ctx context.Context, chatID, userID int64, token string) (Verdict, error) {
	record, err := s.store.GetCaptcha(ctx, chatID, userID)
	if err != nil {
		return Verdict{}, errors.WithMessage(err, "cant load captcha")
	}
	if record == nil {
		return Verdict{Expired: true, Missing: true}, nil
	}
	if record.ExpiresAt.Before(s.now()) {
		if err := s.store.DeleteCaptcha(ctx, chatID, userID); err != nil {
			return Verdict{}, errors.WithMessage(err, "cant delete expired captcha")
		}
		return Verdict{Expired: true, Attempts: record.Attempts}, nil
	}
	if record.Token == token {
		if err := s.store.DeleteCaptcha(ctx, chatID, userID); err != nil {
			return Verdict{}, errors.WithMessage(err, "cant delete solved captcha")
		}
		return Verdict{Success: true, Attempts: record.Attempts}, nil
	}

	record.Attempts++
	if err := s.store.UpdateCaptcha(ctx, record); err != nil {
		return Verdict{}, errors.WithMessage(err, "cant update captcha")
	}
	return Verdict{Attempts: record.Attempts}, nil
}

// IsPending reports whether the member has an unexpired challenge.
func (s *Service) IsPending(ctx context.Context, chatID, userID int64) (bool, error) {
	record, err := s.store.GetCaptcha(ctx, chatID, userID)
	if err != nil {
		return false, errors.WithMessage(err, "cant load captcha")
	}
	return record != nil && record.ExpiresAt.After(s.now()), nil
}

func (s *Service) Clear(ctx context.Context, chatID, userID int64) error {
	return errors.WithMessage(s.store.DeleteCaptcha(ctx, chatID, userID), "cant clear captcha")
}

func (s *Service) intn(n int) int {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rnd.Intn(n)
}

func MakeToken(nonce, answer string) string {
	return TokenPrefix + nonce + "|" + answer
}

// IsToken reports whether callback data is a well-formed challenge answer.
func IsToken(data string) bool {
	_, _, ok := parseToken(data)
	return ok
}

// parseToken splits a challenge answer into its nonce and answer parts.
func parseToken(data string) (nonce, answer string, ok bool) {
	if !strings.HasPrefix(data, TokenPrefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(data, TokenPrefix), "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
