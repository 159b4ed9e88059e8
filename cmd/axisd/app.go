package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"axis-blue-backend/config"
	"axis-blue-backend/internal/backend"
	"axis-blue-backend/internal/backend/gormbackend"
	"axis-blue-backend/internal/backend/rest"
	"axis-blue-backend/internal/db"
	"axis-blue-backend/internal/localstate"
	"axis-blue-backend/internal/tracker"
)

// app holds the services shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	state    *localstate.FileStore
	gorm     *gormbackend.Backend
	backends *backend.Manager
	auth     *backend.Auth
}

func openApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	state, err := localstate.NewFileStore(cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("open state dir: %w", err)
	}

	gb := gormbackend.New(gormDB, gormbackend.Options{
		SessionTTL: time.Duration(cfg.Backend.SessionTTLMin) * time.Minute,
		Logger:     logger.Named("gormbackend"),
	})
	static := backend.Settings{Kind: cfg.Backend.Kind, URL: cfg.Backend.URL, Key: cfg.Backend.Key}
	manager := backend.NewManager(static, state, factory(gb, cfg.Backend, logger), logger.Named("backend"))

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       gormDB,
		state:    state,
		gorm:     gb,
		backends: manager,
		auth:     backend.NewAuth(state, logger.Named("auth")),
	}, nil
}

func factory(gb *gormbackend.Backend, cfg config.BackendConfig, logger *zap.Logger) backend.Factory {
	return func(s backend.Settings) (backend.Backend, error) {
		switch s.Kind {
		case backend.KindGorm:
			return gb, nil
		case backend.KindREST:
			c, err := rest.New(s.URL, s.Key, rest.Options{
				Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
				Logger:  logger.Named("rest"),
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		return nil, fmt.Errorf("unknown backend kind %q", s.Kind)
	}
}

func (a *app) tracker(onUrgent func(tracker.Visit, tracker.UrgentIssue)) (*tracker.Tracker, error) {
	return tracker.New(a.state, a.logger.Named("tracker"), tracker.Options{
		Location:          a.cfg.Day.Location(),
		TravelBufferMin:   a.cfg.Day.TravelBufferMin,
		DefaultEstMinutes: a.cfg.Day.DefaultEstMinutes,
		Merchandiser:      a.cfg.Day.Merchandiser,
		OnUrgent:          onUrgent,
	})
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
