package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lokoweb3/skillbot/internal/autofix"
	"github.com/lokoweb3/skillbot/internal/config"
	"github.com/lokoweb3/skillbot/internal/errorlog"
	"github.com/lokoweb3/skillbot/internal/eventbus"
	"github.com/lokoweb3/skillbot/internal/gates"
	"github.com/lokoweb3/skillbot/internal/improvement"
	"github.com/lokoweb3/skillbot/internal/router"
)

// app bundles every component instance a subcommand might need. It is
// built once per invocation by loadApp.
type app struct {
	instanceID string // correlates this process's log lines, not a data-model ID
	cfg        *config.Config
	bus        *eventbus.Bus
	logger     *errorlog.Logger
	router     *router.Router
	gates      *gates.Gates
	loop       *improvement.Loop
	fixes      *autofix.Engine
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if skillsDirFlag != "" {
		cfg.SkillsDir = skillsDirFlag
	}

	bus := eventbus.New()

	logger, err := errorlog.New(errorlog.Config{
		DataDir:            filepath.Join(cfg.DataDir, "errors"),
		RecurringThreshold: cfg.ErrorLog.RecurringThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("error log: %w", err)
	}

	rtr := router.New(logger, bus)
	registerBuiltinRoutes(rtr)

	gt, err := gates.New(gates.Config{
		DataDir:           filepath.Join(cfg.DataDir, "gates"),
		ApprovalThreshold: cfg.Gates.ApprovalThreshold,
		Timeout:           cfg.Gates.Timeout,
	}, bus)
	if err != nil {
		return nil, fmt.Errorf("gates: %w", err)
	}

	loop, err := improvement.New(improvement.Config{
		DataDir:             filepath.Join(cfg.DataDir, "improvement"),
		CorrectionThreshold: cfg.Improvement.CorrectionThreshold,
		ErrorThreshold:      cfg.Improvement.ErrorThreshold,
		RejectionThreshold:  cfg.Improvement.RejectionThreshold,
		MissThreshold:       cfg.Improvement.MissThreshold,
		ClusterMinimum:      cfg.Improvement.ClusterMinimum,
	}, logger, rtr, gt, bus)
	if err != nil {
		return nil, fmt.Errorf("improvement loop: %w", err)
	}

	var oracle autofix.Oracle
	if cfg.Autofix.UseOracle && cfg.Anthropic.APIKey != "" {
		o := autofix.NewAnthropicOracle(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
		oracle = o.Call
	}
	fixes, err := autofix.New(autofix.Config{
		DataDir:     filepath.Join(cfg.DataDir, "autofix"),
		SkillsDir:   cfg.SkillsDir,
		Oracle:      oracle,
		TestTimeout: cfg.Autofix.TestTimeout,
	}, logger, bus)
	if err != nil {
		return nil, fmt.Errorf("autofix engine: %w", err)
	}

	return &app{
		instanceID: uuid.New().String(),
		cfg:        cfg,
		bus:        bus,
		logger:     logger,
		router:     rtr,
		gates:      gt,
		loop:       loop,
		fixes:      fixes,
	}, nil
}

func (a *app) close() {
	_ = a.gates.Close()
	_ = a.loop.Close()
	_ = a.fixes.Close()
	_ = a.logger.Close()
}
