// Package app wires the webchat server components and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/adambraimbridge/webchat/internal/retention"
	"github.com/adambraimbridge/webchat/pkg/config"
	"github.com/adambraimbridge/webchat/pkg/eventlog"
	"github.com/adambraimbridge/webchat/pkg/hub"
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/migrate"
	"github.com/adambraimbridge/webchat/pkg/state"
	"github.com/adambraimbridge/webchat/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	hub *hub.Hub
	srv *http.Server
}

// New initializes resources that do not require a running context (state
// dirs, event log, validation rules, runtime keys). Call Run to start the
// hub, retention and the HTTP server.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{
		ParticipantKeys: map[string]struct{}{},
		EditorKeys:      map[string]struct{}{},
	}
	for _, k := range eff.Config.Security.APIKeys.Participant {
		runtimeCfg.ParticipantKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Editor {
		runtimeCfg.EditorKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	initValidation(eff)

	if err := state.Init(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to prepare state dirs under %s: %w", eff.DBPath, err)
	}
	if err := eventlog.Open(state.PathsVar.Store); err != nil {
		return nil, fmt.Errorf("failed to open event log at %s: %w", state.PathsVar.Store, err)
	}

	if invoked, err := migrate.Run(context.Background(), version); err != nil {
		_ = eventlog.Close()
		return nil, fmt.Errorf("migration to %s failed: %w", version, err)
	} else if invoked {
		logger.Info("migration_complete", "version", version)
	}

	return &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		hub:       hub.New(),
	}, nil
}

// Run starts the hub, retention scheduler and HTTP server, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	go a.hub.Run(ctx)

	retention.SetEffectiveConfig(a.eff)
	cancelRetention, err := retention.Start(ctx, a.eff)
	if err != nil {
		return err
	}
	defer cancelRetention()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.stopHTTP()
		return eventlog.Close()
	case err := <-errCh:
		_ = eventlog.Close()
		return err
	}
}

// initValidation builds message validation rules from the widget config.
func initValidation(eff config.EffectiveConfigResult) {
	vr := validation.Rules{
		Required: []string{"html"},
		MaxLen:   map[string]int{"html": 8192, "keytext": 512, "author": 128},
	}
	if max := eff.Config.Widget.MaxMessageLen; max > 0 {
		vr.MaxLen["html"] = max
	}
	validation.SetRules(vr)
}
