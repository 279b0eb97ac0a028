package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/chat"
	"github.com/suPer8Hu/ragview/internal/config"
	"github.com/suPer8Hu/ragview/internal/controller"
	"github.com/suPer8Hu/ragview/internal/db"
	"github.com/suPer8Hu/ragview/internal/ingest"
	"github.com/suPer8Hu/ragview/internal/logger"
	"github.com/suPer8Hu/ragview/internal/rag"
	"github.com/suPer8Hu/ragview/internal/store"
	"github.com/suPer8Hu/ragview/internal/store/boltstore"
	"github.com/suPer8Hu/ragview/internal/store/rabbitmq"
	"github.com/suPer8Hu/ragview/internal/store/redisstore"
	"github.com/suPer8Hu/ragview/internal/store/sqlstore"
	"github.com/suPer8Hu/ragview/internal/terminal"
	"github.com/suPer8Hu/ragview/internal/transcript"
	"gorm.io/gorm"
)

// app holds what every subcommand shares. Connections are opened on demand.
type app struct {
	cfg     config.Config
	history *store.Adapter
	gw      *rag.Client

	gdb     *gorm.DB
	closers []io.Closer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if rootFlags.store != "" {
		cfg.StoreBackend = rootFlags.store
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	a := &app{cfg: cfg, gw: rag.NewClient(cfg.RAGBaseURL, cfg.RAGTimeout)}

	backend, err := a.registry().Open(ctx, cfg.StoreBackend)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	a.history = store.NewAdapter(backend, cfg.StoreKey)
	a.closers = append(a.closers, a.history)
	log.Debug().Str("backend", cfg.StoreBackend).Str("key", cfg.StoreKey).Msg("history store ready")
	return a, nil
}

func (a *app) registry() *store.Registry {
	reg := store.NewRegistry()
	reg.Register("memory", func(context.Context) (store.Backend, error) {
		return store.NewMemory(), nil
	})
	reg.Register("bolt", func(context.Context) (store.Backend, error) {
		return boltstore.Open(a.cfg.BoltPath)
	})
	reg.Register("redis", func(context.Context) (store.Backend, error) {
		return redisstore.New(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	})
	reg.Register("sql", func(context.Context) (store.Backend, error) {
		gdb, err := a.db()
		if err != nil {
			return nil, err
		}
		return sqlstore.New(gdb)
	})
	return reg
}

func (a *app) db() (*gorm.DB, error) {
	if a.gdb != nil {
		return a.gdb, nil
	}
	gdb, err := db.Open(a.cfg.DBDriver, a.cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	a.gdb = gdb
	return gdb, nil
}

func (a *app) repo() (*chat.Repo, error) {
	gdb, err := a.db()
	if err != nil {
		return nil, err
	}
	repo := chat.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

// jobs connects the job table and the queue for async ingestion.
func (a *app) jobs() (*ingest.Service, error) {
	repo, err := a.repo()
	if err != nil {
		return nil, err
	}
	pub, err := rabbitmq.NewPublisher(a.cfg.RabbitURL, a.cfg.RabbitQueue)
	if err != nil {
		return nil, fmt.Errorf("rabbit publisher: %w", err)
	}
	a.closers = append(a.closers, pub)
	return ingest.NewService(repo, pub, nil), nil
}

func (a *app) manager(ctx context.Context, resume bool) (*chat.Manager, error) {
	reload := a.cfg.ReloadCount
	if reload == 0 {
		// RELOAD_COUNT=0 asks for no greeting
		reload = -1
	}
	return chat.Open(ctx, a.history, chat.Options{
		ReloadCount:  reload,
		ResumeLatest: resume,
	})
}

func (a *app) settings() controller.Settings {
	return controller.Settings{
		GreetingTrigger: a.cfg.GreetingTrigger,
		GreetingReply:   a.cfg.GreetingReply,
		MaxInputRows:    a.cfg.MaxInputRows,
	}
}

// console wires a controller to the terminal: bubbles and status lines go to
// stdout, confirmations are read from stdin.
func (a *app) console(hist *chat.Manager) (*controller.Controller, *terminal.REPL) {
	repl := terminal.NewREPL(os.Stdin, os.Stdout)
	ctl := controller.New(a.gw, hist, transcript.NewTerminal(os.Stdout), repl.Console, repl.Confirm, a.settings())
	return ctl, repl
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
	if a.gdb != nil {
		if sqlDB, err := a.gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// exitErr keeps flow errors the terminal already showed from being printed twice.
func exitErr(err error) error {
	var be *controller.BackendError
	if errors.As(err, &be) || errors.Is(err, controller.ErrEmptyInput) || errors.Is(err, controller.ErrNoFile) {
		return errShown
	}
	return err
}

var errShown = errors.New("request failed")
