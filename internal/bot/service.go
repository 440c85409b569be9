package bot

import (
	"context"
	"sync"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/infra"
)

const pollTimeoutSeconds = 60

type (
	Processor interface {
		Process(ctx context.Context, u *api.Update) error
	}

	// Service polls the Bot API and feeds every update to the processor.
	Service struct {
		bot       *api.BotAPI
		processor Processor
		logger    *log.Entry
		fatal     chan error

		workerCancel   context.CancelFunc
		workerWG       sync.WaitGroup
		startStopMutex sync.Mutex
		started        bool
	}
)

func NewService(bot *api.BotAPI, processor Processor) *Service {
	return &Service{
		bot:       bot,
		processor: processor,
		logger:    log.WithField("component", "bot_service"),
		fatal:     make(chan error, 1),
	}
}

// Errors delivers the polling error that stopped the service.
func (s *Service) Errors() <-chan error {
	return s.fatal
}

func (s *Service) Start(ctx context.Context) error {
	s.startStopMutex.Lock()
	defer s.startStopMutex.Unlock()
	if s.started {
		return nil
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.workerCancel = cancel
	s.started = true

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = pollTimeoutSeconds
	updateConfig.AllowedUpdates = []string{
		"message",
		"callback_query",
		"chat_member",
		"my_chat_member",
		"chat_join_request",
	}
	updates, errs := GetUpdatesChans(workerCtx, s.bot, updateConfig)

	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		s.loop(workerCtx, updates, errs)
	}()
	s.logger.Info("polling started")
	return nil
}

func (s *Service) loop(ctx context.Context, updates api.UpdatesChannel, errs chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.WithField("error", err.Error()).Error("bot api get updates error")
			select {
			case s.fatal <- err:
			default:
			}
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.handle(ctx, &update)
		}
	}
}

func (s *Service) handle(ctx context.Context, update *api.Update) {
	infra.Safe("process_update", func() {
		if err := s.processor.Process(ctx, update); err != nil {
			s.logger.WithFields(log.Fields{
				"update_id": update.UpdateID,
				"error":     err.Error(),
			}).Error("cant process update")
		}
	})
}

func (s *Service) Stop(ctx context.Context) error {
	s.startStopMutex.Lock()
	if !s.started {
		s.startStopMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.workerCancel
	s.workerCancel = nil
	s.startStopMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return errors.WithMessage(ctx.Err(), "bot service stop timeout")
	}
}
