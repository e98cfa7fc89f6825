package service

import (
	"context"
	"fmt"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/orchestrator"
	"inferd/internal/provider"
	"inferd/internal/registry"
	"inferd/internal/scheduler"
	"inferd/pkg/types"
)

// slotted is implemented by backends whose model lives in a scheduler slot.
type slotted interface {
	Loader() scheduler.Loader
}

func (s *Service) build(ctx context.Context, factory Factory) (*orchestrator.Orchestrator, error) {
	cfg := s.cfg
	models, err := s.scanModels()
	if err != nil {
		return nil, err
	}

	b := orchestrator.NewBuilder().
		Primary(provider.ID(cfg.Primary)).
		HistorySize(cfg.HistoryPairs()).
		Scheduler(s.sched).
		Logger(&s.log)
	if len(cfg.FallbackOrder) > 0 {
		b.FallbackOrder(toIDs(cfg.FallbackOrder)...)
	}
	if len(cfg.VisionOrder) > 0 {
		b.VisionOrder(toIDs(cfg.VisionOrder)...)
	}
	if !cfg.Retry.Disabled {
		b.Attempter(s.retry)
	}

	for _, pc := range cfg.Providers {
		spec, sizeMB, err := specFor(pc, models)
		if err != nil {
			return nil, err
		}
		backend, err := factory(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.ID, err)
		}

		if pc.ID == cfg.VisionFallback {
			vb, ok := backend.(provider.VisionBackend)
			if !ok {
				return nil, fmt.Errorf("vision_fallback %s: backend has no vision support", pc.ID)
			}
			b.VisionFallback(vb)
			s.log.Debug().Str("provider", pc.ID).Msg("local vision fallback")
			continue
		}

		caps, _ := provider.ParseCapabilities(pc.Capabilities)
		var opts []orchestrator.RegisterOption
		if pc.MaxInflight > 0 {
			opts = append(opts, orchestrator.WithAdmission(pc.MaxInflight, pc.MaxWait.Std()))
		}
		if sl, ok := backend.(slotted); ok && pc.Slot != "" {
			if err := s.registerSlot(pc.Slot, sizeMB, sl.Loader()); err != nil {
				return nil, err
			}
			opts = append(opts, orchestrator.WithSlot(pc.Slot))
		}
		b.Register(provider.ID(pc.ID), backend, caps, opts...)
		s.log.Debug().Str("provider", pc.ID).Str("kind", pc.Kind).Str("slot", pc.Slot).Msg("provider registered")
	}
	return b.Build()
}

// scanModels reads the models dir only when a llama provider refers to a
// model by name.
func (s *Service) scanModels() ([]types.Model, error) {
	for _, pc := range s.cfg.Providers {
		if pc.Kind == "llama" && pc.ModelPath == "" {
			models, err := registry.LoadDir(s.cfg.ModelsDir)
			if err != nil {
				return nil, fmt.Errorf("models dir: %w", err)
			}
			return models, nil
		}
	}
	return nil, nil
}

func (s *Service) registerSlot(name string, sizeMB int, loader scheduler.Loader) error {
	prio := scheduler.PriorityNormal
	if sc, ok := s.cfg.Slot(name); ok {
		if sc.SizeMB > 0 {
			sizeMB = sc.SizeMB
		}
		prio, _ = scheduler.ParsePriority(sc.Priority)
	}
	if sizeMB <= 0 {
		return fmt.Errorf("slot %s: unknown size, set scheduler.slots[].size_mb", name)
	}
	return s.sched.Register(scheduler.Slot{Name: name, SizeMB: sizeMB, Priority: prio, Loader: loader})
}

// specFor maps a provider entry to a backend spec and, for llama, resolves
// the model file and its estimated size.
func specFor(pc config.ProviderConfig, models []types.Model) (provider.Spec, int, error) {
	spec := provider.Spec{
		ID:          provider.ID(pc.ID),
		Kind:        pc.Kind,
		BaseURL:     pc.BaseURL,
		APIKeys:     pc.Keys(),
		Model:       pc.Model,
		VisionModel: pc.VisionModel,
		MaxTokens:   pc.MaxTokens,
		Temperature: pc.Temperature,
		Timeout:     pc.Timeout.Std(),
		ModelPath:   pc.ModelPath,
		ContextSize: pc.ContextSize,
		Threads:     pc.Threads,
	}
	if !strings.EqualFold(pc.Kind, "llama") {
		return spec, 0, nil
	}
	if spec.ModelPath != "" {
		p, err := fsutil.ResolvePath(spec.ModelPath)
		if err != nil {
			return spec, 0, fmt.Errorf("provider %s: %w", pc.ID, err)
		}
		spec.ModelPath = p
		size, _ := fsutil.SizeMB(p)
		return spec, size, nil
	}
	m, ok := registry.Find(models, pc.Model)
	if !ok {
		return spec, 0, fmt.Errorf("provider %s: model %q not found in models dir", pc.ID, pc.Model)
	}
	spec.ModelPath = m.Path
	return spec, m.SizeMB, nil
}

func toIDs(ss []string) []provider.ID {
	out := make([]provider.ID, len(ss))
	for i, s := range ss {
		out[i] = provider.ID(s)
	}
	return out
}
