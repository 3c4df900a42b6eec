package cli

import (
	"context"
	"errors"
	"fmt"

	"chorecal/internal/config"
	"chorecal/internal/instance"
	appLog "chorecal/internal/log"
	"chorecal/internal/model"
	"chorecal/internal/store"
)

// app is the wired service graph shared by the commands that touch the
// database.
type app struct {
	cfg       *config.Config
	store     *store.Store
	clock     instance.Clock
	generator *instance.Generator
	validator *instance.Validator
}

func openApp(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeInvalid, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if !opts.Verbose {
		if lvl, err := appLog.ParseLevel(cfg.LogLevel); err == nil {
			appLog.SetLevel(lvl)
		}
	}
	f.VerboseLog("config %s, database %s, timezone %s", opts.ConfigPath, cfg.Database, cfg.Timezone)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = instance.LocalClock(cfg.Location())
	}
	locks := instance.NewTemplateLocks()
	instOpts := []instance.Option{
		instance.WithLookAhead(cfg.LookAheadDays),
		instance.WithMaxCandidates(cfg.MaxCandidates),
		instance.WithPreserveTouched(cfg.PreserveTouched),
		instance.WithLocks(locks),
	}
	a := &app{
		cfg:       cfg,
		store:     st,
		clock:     clock,
		generator: instance.NewGenerator(st, clock, instOpts...),
		validator: instance.NewValidator(st, clock, instOpts...),
	}

	if err := a.seedTemplates(ctx); err != nil {
		_ = st.Close()
		return nil, fail(f, ExitCommandError, ErrCodeInvalid, "failed to seed templates", err)
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// seedTemplates upserts the config's templates. A seed without an anchor
// date keeps the anchor it was first stored with.
func (a *app) seedTemplates(ctx context.Context) error {
	for _, seed := range a.cfg.Templates {
		tmpl, err := seed.Template(a.clock.Now())
		if err != nil {
			return err
		}
		existing, err := a.store.GetTemplate(ctx, seed.ID)
		switch {
		case errors.Is(err, store.ErrTemplateNotFound):
			if _, err := a.store.CreateTemplate(ctx, tmpl); err != nil {
				return err
			}
			appLog.Info("template seeded", "id", seed.ID)
			continue
		case err != nil:
			return err
		}
		if seed.AnchorDate == "" {
			tmpl.AnchorDate = existing.AnchorDate
		}
		if err := a.store.UpsertTemplate(ctx, tmpl); err != nil {
			return err
		}
	}
	return nil
}

// template loads id, reporting a missing template as a command error.
func (a *app) template(ctx context.Context, f *OutputFormatter, id string) (model.Template, error) {
	tmpl, err := a.store.GetTemplate(ctx, id)
	if errors.Is(err, store.ErrTemplateNotFound) {
		return model.Template{}, fail(f, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("template %q not found", id), nil)
	}
	if err != nil {
		return model.Template{}, fail(f, ExitCommandError, ErrCodeGeneric, "failed to load template", err)
	}
	return tmpl, nil
}
