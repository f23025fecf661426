// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/concord-chat/concord/audit"
	"github.com/concord-chat/concord/engine"
	"github.com/concord-chat/concord/lib/config"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/messaging"
)

// commonFlags are accepted by every leaf command.
type commonFlags struct {
	configPath  string
	environment string
	verbose     bool
}

func (f *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "config file (default $"+config.EnvConfigPath+")")
	flagSet.StringVar(&f.environment, "environment", "", "named environment from the config file")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
}

// app is everything a connected command needs.
type app struct {
	cfg     *config.Config
	session *messaging.DirectSession
	engine  *engine.Engine
	store   *audit.Store
	actor   ref.UserID
	space   ref.RoomID
	logger  *slog.Logger
}

// connect loads the config, authenticates, opens the audit store, and
// loads the space state. The caller must close the returned app.
func (f *commonFlags) connect(ctx context.Context) (*app, error) {
	path := f.configPath
	if path == "" {
		var err error
		if path, err = config.PathFromEnv(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path, f.environment)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	token, err := cfg.AccessToken()
	if err != nil {
		return nil, err
	}
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.HomeserverURL,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	actor, err := ref.ParseUserID(cfg.UserID)
	if err != nil {
		return nil, err
	}
	session := client.SessionFromToken(actor, token)

	space, err := resolveSpace(ctx, session, cfg.Space)
	if err != nil {
		return nil, err
	}

	store, err := audit.Open(audit.Config{
		Path:     cfg.Audit.Path,
		PoolSize: cfg.Audit.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	systemActor := actor
	if cfg.SystemActor != "" {
		if systemActor, err = ref.ParseUserID(cfg.SystemActor); err != nil {
			store.Close()
			return nil, err
		}
	}

	eng, err := engine.New(engine.Config{
		Session:         session,
		Space:           space,
		SystemActor:     systemActor,
		Audit:           store,
		BulkConcurrency: cfg.BulkConcurrency,
		ExpiryInterval:  cfg.ExpiryInterval.Std(),
		Logger:          logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := eng.LoadState(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		session: session,
		engine:  eng,
		store:   store,
		actor:   actor,
		space:   space,
		logger:  logger,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing audit store", "error", err)
	}
}

// resolveSpace turns the configured space (room ID or alias) into a
// room ID.
func resolveSpace(ctx context.Context, session *messaging.DirectSession, space string) (ref.RoomID, error) {
	if strings.HasPrefix(space, "#") {
		alias, err := ref.ParseRoomAlias(space)
		if err != nil {
			return ref.RoomID{}, err
		}
		roomID, err := session.ResolveAlias(ctx, alias)
		if err != nil {
			return ref.RoomID{}, fmt.Errorf("resolving space alias %s: %w", alias, err)
		}
		return roomID, nil
	}
	return ref.ParseRoomID(space)
}
