package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

const (
	DefaultSweepInterval = time.Minute
	windowIdleTimeout    = time.Hour
)

type (
	SweepStore interface {
		GetExpiredCaptchas(ctx context.Context, now time.Time) ([]*db.PendingCaptcha, error)
		GetExpiredJoinRequests(ctx context.Context, now time.Time) ([]*db.JoinRequest, error)
		SetJoinRequestStatus(ctx context.Context, chatID, userID int64, status db.JoinRequestStatus) error
	}

	// Executor carries out a result in the given chat.
	Executor interface {
		Execute(ctx context.Context, chatID int64, res *moderation.Result) error
	}

	JoinRequestDecliner interface {
		DeclineJoinRequest(ctx context.Context, chatID, userID int64) error
	}

	// Sweeper periodically declines stale join requests and prunes idle rate windows.
	// Unanswered captchas are failed by the sweeper only when WithCaptchaExpiry is set;
	// otherwise expiry is decided when the member answers.
	Sweeper struct {
		engine        *Engine
		store         SweepStore
		executor      Executor
		decliner      JoinRequestDecliner
		interval      time.Duration
		expireCaptcha bool
		logger        *log.Entry

		workerCancel   context.CancelFunc
		workerWG       sync.WaitGroup
		startStopMutex sync.Mutex
		started        bool
	}

	SweeperOption func(*Sweeper)
)

// WithCaptchaExpiry makes every pass ban members whose challenge deadline passed.
func WithCaptchaExpiry(enabled bool) SweeperOption {
	return func(s *Sweeper) { s.expireCaptcha = enabled }
}

func NewSweeper(engine *Engine, store SweepStore, executor Executor, decliner JoinRequestDecliner, interval time.Duration, opts ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &Sweeper{
		engine:   engine,
		store:    store,
		executor: executor,
		decliner: decliner,
		interval: interval,
		logger:   log.WithField("component", "sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.startStopMutex.Lock()
	defer s.startStopMutex.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.workerCancel = cancel

	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := s.Sweep(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.WithField("error", err.Error()).Error("sweep failed")
				}
			}
		}
	}()

	s.started = true
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.startStopMutex.Lock()
	if !s.started {
		s.startStopMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.workerCancel
	s.startStopMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.workerWG.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Sweep runs one pass. Individual failures are logged and do not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var sweepErr error
	if s.expireCaptcha {
		if err := s.expireCaptchas(ctx); err != nil {
			sweepErr = err
		}
	}
	if err := s.expireJoinRequests(ctx); err != nil && sweepErr == nil {
		sweepErr = err
	}
	if pruned := s.engine.PruneWindows(windowIdleTimeout); pruned > 0 {
		s.logger.WithField("count", pruned).Debug("pruned idle rate windows")
	}
	return sweepErr
}

func (s *Sweeper) expireCaptchas(ctx context.Context) error {
	entry := s.logger.WithField("method", "expireCaptchas")

	expired, err := s.store.GetExpiredCaptchas(ctx, s.engine.now())
	if err != nil {
		return errors.WithMessage(err, "cant get expired captchas")
	}
	for _, pending := range expired {
		entry := entry.WithFields(log.Fields{"chat_id": pending.ChatID, "user_id": pending.UserID})
		res, err := s.engine.ExpireCaptcha(ctx, pending)
		if err != nil {
			entry.WithField("error", err.Error()).Error("cant expire captcha")
			continue
		}
		if err := s.executor.Execute(ctx, pending.ChatID, res); err != nil {
			entry.WithField("error", err.Error()).Error("cant execute captcha expiry")
		}
	}
	return nil
}

func (s *Sweeper) expireJoinRequests(ctx context.Context) error {
	entry := s.logger.WithField("method", "expireJoinRequests")

	expired, err := s.store.GetExpiredJoinRequests(ctx, s.engine.now())
	if err != nil {
		return errors.WithMessage(err, "cant get expired join requests")
	}
	for _, req := range expired {
		entry := entry.WithFields(log.Fields{"chat_id": req.ChatID, "user_id": req.UserID})
		if err := s.store.SetJoinRequestStatus(ctx, req.ChatID, req.UserID, db.JoinRequestRejected); err != nil {
			entry.WithField("error", err.Error()).Error("cant reject join request")
			continue
		}
		if s.decliner == nil {
			continue
		}
		if err := s.decliner.DeclineJoinRequest(ctx, req.ChatID, req.UserID); err != nil {
			entry.WithField("error", err.Error()).Warn("cant decline join request")
		}
	}
	return nil
}
