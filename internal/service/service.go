package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/loopback"
	"inferd/internal/orchestrator"
	"inferd/internal/provider"
	"inferd/internal/scheduler"
)

// Factory constructs a backend from a spec. provider.New is the default.
type Factory func(ctx context.Context, spec provider.Spec) (provider.Backend, error)

// Options carries dependencies that are not part of the config file.
type Options struct {
	Logger *zerolog.Logger
	// Factory overrides backend construction, mainly in tests.
	Factory Factory
	// Tools replaces the built-in tool set of the agent loop.
	Tools orchestrator.Tools
}

// Service is the composition root. It is safe for concurrent use.
type Service struct {
	cfg     config.Config
	sched   *scheduler.Scheduler
	orch    *orchestrator.Orchestrator
	retry   *loopback.Handler
	tools   orchestrator.Tools
	log     zerolog.Logger
	started time.Time
}

// New builds every component from cfg. cfg is defaulted and validated here.
func New(ctx context.Context, cfg config.Config, opts Options) (*Service, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	if opts.Factory == nil {
		opts.Factory = provider.New
	}

	s := &Service{cfg: cfg, log: log, started: time.Now()}
	s.retry = loopback.New(loopback.Config{
		MaxRetriesPerProvider: cfg.Retry.MaxRetriesPerProvider,
		MaxTotalRetries:       cfg.Retry.MaxTotalRetries,
		Logger:                &log,
	})
	s.sched = scheduler.New(scheduler.Config{
		BudgetMB:  cfg.Scheduler.BudgetMB,
		MarginMB:  cfg.Scheduler.MarginMB,
		StatePath: cfg.Scheduler.StatePath,
		Publisher: logPublisher{log: log.With().Str("component", "scheduler").Logger()},
		Logger:    &log,
	})

	orch, err := s.build(ctx, opts.Factory)
	if err != nil {
		return nil, err
	}
	s.orch = orch

	s.tools = opts.Tools
	if s.tools == nil {
		s.tools = s.builtinTools()
	}

	if spec := cfg.Scheduler.IdleSchedule; spec != "" {
		if err := s.sched.StartIdleSweeper(spec, cfg.Scheduler.IdleAfter.Std()); err != nil {
			return nil, err
		}
	}
	log.Info().
		Int("providers", orch.Len()).
		Int("slots", len(s.sched.Names())).
		Int("budget_mb", cfg.Scheduler.BudgetMB).
		Msg("service ready")
	return s, nil
}

// Close stops background work, persists slot usage and unloads every slot.
func (s *Service) Close() error {
	s.sched.Stop()
	return errors.Join(s.sched.Save(), s.sched.UnloadAll())
}

// Orchestrator exposes the default session, e.g. for the CLI.
func (s *Service) Orchestrator() *orchestrator.Orchestrator { return s.orch }

func (s *Service) Scheduler() *scheduler.Scheduler { return s.sched }
