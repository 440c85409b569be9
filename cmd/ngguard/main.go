package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iamwavecut/ngguard/internal/admin"
	"github.com/iamwavecut/ngguard/internal/audit"
	"github.com/iamwavecut/ngguard/internal/bot"
	"github.com/iamwavecut/ngguard/internal/config"
	"github.com/iamwavecut/ngguard/internal/db/sqlite"
	"github.com/iamwavecut/ngguard/internal/dispatch"
	"github.com/iamwavecut/ngguard/internal/engine"
	"github.com/iamwavecut/ngguard/internal/infra"
	"github.com/iamwavecut/ngguard/internal/infrastructure/telegram"
	"github.com/iamwavecut/ngguard/internal/lifecycle"
	"github.com/iamwavecut/ngguard/internal/observability"
	"github.com/iamwavecut/ngguard/internal/settings"
)

const stopTimeout = 15 * time.Second

type settingsStore interface {
	EnsureChat(ctx context.Context, chatID int64, title, username string) (*settings.ChatSettings, error)
	SaveSettings(ctx context.Context, chatID int64, s *settings.ChatSettings) error
	Close() error
}

func main() {
	newApp().RunAndExitOnError()
}

func newApp() *cli.App {
	storeFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "dot-path",
			Usage:   "directory holding the database",
			Value:   "~/.ngguard",
			EnvVars: []string{"NG_DOT_PATH"},
		},
		&cli.StringFlag{
			Name:    "db-name",
			Usage:   "database file name",
			Value:   "ngguard.db",
			EnvVars: []string{"NG_DB_NAME"},
		},
		&cli.Int64Flag{
			Name:     "chat",
			Usage:    "chat id",
			Required: true,
		},
	}

	app := &cli.App{
		Name:  "ngguard",
		Usage: "group chat moderation bot",
	}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "poll Telegram and moderate chats",
			Action: runBot,
		},
		{
			Name:   "backup",
			Usage:  "print chat settings as JSON",
			Flags:  storeFlags,
			Action: runBackup,
		},
		{
			Name:  "restore",
			Usage: "validate a settings backup and save it for a chat",
			Flags: append(append([]cli.Flag{}, storeFlags...), &cli.PathFlag{
				Name:     "file",
				Usage:    "backup file",
				Required: true,
			}),
			Action: runRestore,
		},
	}
	app.DefaultCommand = "run"
	return app
}

func runBot(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.SetFormatter(&config.NbFormatter{ShowSource: log.Level(cfg.LogLevel) == log.TraceLevel})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.Init(ctx)
	defer func() {
		if err := observability.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.WithField("error", err.Error()).Warn("cant shutdown tracing")
		}
	}()

	dir, err := infra.GetWorkDir(cfg.DotPath)
	if err != nil {
		return err
	}
	store, err := sqlite.NewSQLiteClient(ctx, dir, cfg.DBName)
	if err != nil {
		return errors.WithMessage(err, "cant open store")
	}
	defer func() { _ = store.Close() }()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return errors.WithMessage(err, "cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	log.WithField("username", botAPI.Self.UserName).Info("authorized")

	gateway := telegram.NewOperations(botAPI)
	moderator, err := engine.New(store, gateway,
		engine.WithSettingsTTL(cfg.Engine.SettingsTTL),
		engine.WithAdminTTL(cfg.Engine.AdminTTL),
		engine.WithCacheSize(cfg.Engine.SettingsCacheSize),
		engine.WithWindowCapacity(cfg.Engine.WindowCapacity),
	)
	if err != nil {
		return errors.WithMessage(err, "cant create engine")
	}
	defer func() { _ = moderator.Close() }()

	auditLog, err := audit.New(cfg.AuditLog)
	if err != nil {
		return errors.WithMessage(err, "cant create audit log")
	}
	defer func() { _ = auditLog.Sync() }()

	dispatcher := dispatch.New(gateway, moderator, dispatch.WithAudit(auditLog))
	commands := admin.NewHandler(store, gateway, moderator)
	processor := bot.NewUpdateProcessor(moderator, dispatcher, commands, gateway, cfg.DefaultLanguage)
	service := bot.NewService(botAPI, processor)

	runtime := lifecycle.NewRuntime()
	runtime.Register("metrics", observability.NewMetricsServer(cfg.Metrics.Addr))
	runtime.Register("sweeper", engine.NewSweeper(moderator, store, dispatcher, gateway, cfg.Engine.SweepInterval,
		engine.WithCaptchaExpiry(cfg.Engine.CaptchaSweep),
	))
	runtime.Register("bot", service)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go infra.GoRecoverable(3, "watchdog", func() {
		changed := infra.MonitorExecutable(runCtx)
		select {
		case err := <-service.Errors():
			log.WithField("error", err.Error()).Error("polling stopped")
			cancel()
		case _, ok := <-changed:
			if ok {
				log.Warn("executable file was modified")
				cancel()
			}
		case <-runCtx.Done():
		}
	})

	return runtime.Run(runCtx, stopTimeout)
}

func openStore(cctx *cli.Context) (settingsStore, error) {
	dir, err := infra.GetWorkDir(cctx.String("dot-path"))
	if err != nil {
		return nil, err
	}
	store, err := sqlite.NewSQLiteClient(cctx.Context, dir, cctx.String("db-name"))
	if err != nil {
		return nil, errors.WithMessage(err, "cant open store")
	}
	return store, nil
}

func runBackup(cctx *cli.Context) error {
	store, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	s, err := store.EnsureChat(cctx.Context, cctx.Int64("chat"), "", "")
	if err != nil {
		return errors.WithMessage(err, "cant load settings")
	}
	data, err := settings.Encode(s)
	if err != nil {
		return errors.WithMessage(err, "cant encode settings")
	}
	_, err = fmt.Fprintln(cctx.App.Writer, string(data))
	return err
}

func runRestore(cctx *cli.Context) error {
	path := cctx.Path("file")
	info, err := os.Stat(path)
	if err != nil {
		return errors.WithMessage(err, "cant read backup")
	}
	if info.Size() > settings.MaxBackupBytes {
		return fmt.Errorf("backup is larger than %d bytes", settings.MaxBackupBytes)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return errors.WithMessage(err, "cant read backup")
	}
	restored, err := settings.Decode(payload)
	if err != nil {
		return err
	}

	store, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	chatID := cctx.Int64("chat")
	current, err := store.EnsureChat(cctx.Context, chatID, "", "")
	if err != nil {
		return errors.WithMessage(err, "cant load settings")
	}
	restored.Subscription = current.Subscription
	if err := store.SaveSettings(cctx.Context, chatID, restored); err != nil {
		return errors.WithMessage(err, "cant save settings")
	}
	_, err = fmt.Fprintf(cctx.App.Writer, "settings restored for chat %d\n", chatID)
	return err
}
