package bot

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/admin"
	"github.com/iamwavecut/ngguard/internal/dispatch"
	"github.com/iamwavecut/ngguard/internal/engine"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/policy/permissions"
	"github.com/iamwavecut/ngguard/internal/settings"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type (
	// Moderator is the decision engine surface the processor feeds.
	Moderator interface {
		ProcessMessage(ctx context.Context, msg *engine.Message) (*moderation.Result, error)
		ProcessServiceMessage(ctx context.Context, msg *engine.Message) (*moderation.Result, error)
		ProcessChatMemberUpdate(ctx context.Context, upd *engine.MemberUpdate) (*moderation.Result, error)
		HandleCaptchaCallback(ctx context.Context, cb *engine.CallbackQuery) (*moderation.Result, error)
		HandleJoinRequest(ctx context.Context, req *engine.JoinRequest) (*moderation.Result, error)
		GetSettings(ctx context.Context, chatID int64) (*settings.ChatSettings, error)
	}

	Executor interface {
		ExecuteIn(ctx context.Context, target dispatch.Target, res *moderation.Result) error
	}

	Commands interface {
		Knows(name string) bool
		Handle(ctx context.Context, cmd *admin.Command) (bool, error)
	}

	// Messenger answers button presses and posts service notices.
	Messenger interface {
		AnswerCallback(ctx context.Context, callbackID, text string) error
		Send(ctx context.Context, msg dispatch.Outgoing) (int, error)
	}

	UpdateProcessor struct {
		engine      Moderator
		executor    Executor
		commands    Commands
		messenger   Messenger
		defaultLang string
		logger      *log.Entry
	}
)

func NewUpdateProcessor(moderator Moderator, executor Executor, commands Commands, messenger Messenger, defaultLang string) *UpdateProcessor {
	return &UpdateProcessor{
		engine:      moderator,
		executor:    executor,
		commands:    commands,
		messenger:   messenger,
		defaultLang: defaultLang,
		logger:      log.WithField("component", "update_processor"),
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if at := updateTime(u); time.Since(at) > UpdateTimeout {
		up.logger.WithFields(log.Fields{
			"update_time": at,
			"age":         time.Since(at),
		}).Debug("Skipping outdated update")
		return nil
	}

	switch {
	case u.Message != nil:
		return up.processMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		return up.processCallback(ctx, u.CallbackQuery)
	case u.ChatMember != nil:
		return up.processMemberUpdate(ctx, u.ChatMember)
	case u.ChatJoinRequest != nil:
		return up.processJoinRequest(ctx, u.ChatJoinRequest)
	case u.MyChatMember != nil:
		return up.processMyChatMember(ctx, u.MyChatMember)
	}
	return nil
}

func (up *UpdateProcessor) processMessage(ctx context.Context, msg *api.Message) error {
	ev := toMessage(msg)
	if !ev.Chat.IsGroup() {
		return nil
	}
	target := dispatch.Target{ChatID: ev.Chat.ID, ThreadID: ev.ThreadID}

	if ev.IsService() {
		res, err := up.engine.ProcessServiceMessage(ctx, ev)
		if err != nil {
			return errors.WithMessage(err, "cant process service message")
		}
		return up.execute(ctx, target, res)
	}

	if msg.IsCommand() && up.commands != nil && up.commands.Knows(msg.Command()) {
		handled, err := up.commands.Handle(ctx, toCommand(msg))
		if err != nil {
			return errors.WithMessage(err, "cant handle command")
		}
		if handled {
			return nil
		}
	}

	res, err := up.engine.ProcessMessage(ctx, ev)
	if err != nil {
		return errors.WithMessage(err, "cant process message")
	}
	return up.execute(ctx, target, res)
}

func (up *UpdateProcessor) processCallback(ctx context.Context, cq *api.CallbackQuery) error {
	ev := toCallback(cq)
	res, err := up.engine.HandleCaptchaCallback(ctx, ev)
	if answerErr := up.messenger.AnswerCallback(ctx, cq.ID, ""); answerErr != nil {
		up.logger.WithField("error", answerErr.Error()).Debug("cant answer callback")
	}
	if err != nil {
		return errors.WithMessage(err, "cant handle callback")
	}
	target := dispatch.Target{ChatID: ev.Chat.ID}
	if cq.Message != nil {
		target.ThreadID = threadOf(cq.Message)
	}
	return up.execute(ctx, target, res)
}

func (up *UpdateProcessor) processMemberUpdate(ctx context.Context, upd *api.ChatMemberUpdated) error {
	ev := toMemberUpdate(upd)
	if !ev.Chat.IsGroup() {
		return nil
	}
	res, err := up.engine.ProcessChatMemberUpdate(ctx, ev)
	if err != nil {
		return errors.WithMessage(err, "cant process member update")
	}
	return up.execute(ctx, dispatch.Target{ChatID: ev.Chat.ID}, res)
}

func (up *UpdateProcessor) processJoinRequest(ctx context.Context, req *api.ChatJoinRequest) error {
	ev := toJoinRequest(req)
	res, err := up.engine.HandleJoinRequest(ctx, ev)
	if err != nil {
		return errors.WithMessage(err, "cant process join request")
	}
	return up.execute(ctx, dispatch.Target{ChatID: ev.Chat.ID}, res)
}

// processMyChatMember warns the chat when the bot joins without the rights it needs to enforce rules.
func (up *UpdateProcessor) processMyChatMember(ctx context.Context, upd *api.ChatMemberUpdated) error {
	chat := toChat(&upd.Chat)
	if !chat.IsGroup() {
		return nil
	}
	member := upd.NewChatMember
	entry := up.logger.WithFields(log.Fields{
		"chat_id": chat.ID,
		"status":  member.Status,
	})
	switch member.Status {
	case engine.MemberStatusLeft, engine.MemberStatusKicked:
		entry.Info("bot removed from chat")
		return nil
	}
	if permissions.CanModerate(&member) && (member.IsCreator() || member.CanDeleteMessages) {
		entry.Debug("bot has moderation rights")
		return nil
	}

	lang := up.defaultLang
	if s, err := up.engine.GetSettings(ctx, chat.ID); err == nil {
		lang = s.Language
	}
	entry.Warn("bot lacks moderation rights")
	_, err := up.messenger.Send(ctx, dispatch.Outgoing{
		ChatID: chat.ID,
		Text:   i18n.Get("I need administrator rights to delete messages and restrict members.", lang),
	})
	return errors.WithMessage(err, "cant send rights notice")
}

func (up *UpdateProcessor) execute(ctx context.Context, target dispatch.Target, res *moderation.Result) error {
	if res == nil || res.Empty() {
		return nil
	}
	return errors.WithMessage(up.executor.ExecuteIn(ctx, target, res), "cant execute result")
}

// GetUpdatesChans long-polls the Bot API until ctx is done.
func GetUpdatesChans(ctx context.Context, bot *api.BotAPI, config api.UpdateConfig) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, bot.Buffer)
	chErr := make(chan error, 1)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			select {
			case <-ctx.Done():
				chErr <- ctx.Err()
				return
			default:
				updates, err := bot.GetUpdates(config)
				if err != nil {
					chErr <- err
					return
				}

				for _, update := range updates {
					if update.UpdateID >= config.Offset {
						config.Offset = update.UpdateID + 1
						select {
						case ch <- update:
						case <-ctx.Done():
							chErr <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return ch, chErr
}
