package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chorecal/internal/config"
	appLog "chorecal/internal/log"
	"chorecal/internal/scheduler"
	"chorecal/internal/web"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
	Once   bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic reconcile pass",
		Long: `Start the HTTP API and schedule a reconcile pass (Fix over every
recurring template) on the configured cron spec. One pass runs at startup.

With --once, run that single pass and exit.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "run one reconcile pass and exit")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := newFormatter(opts.RootOptions, cmd)
	a, err := openApp(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"database", cfg.Database,
		"look_ahead_days", cfg.LookAheadDays,
		"reconcile", cfg.Reconcile,
		"preserve_touched", cfg.PreserveTouched,
		"templates", len(cfg.Templates),
	)

	reconciler := scheduler.NewReconciler(a.store, a.validator, cfg.ReconcileConcurrency)
	summary, err := reconciler.RunOnce(ctx)
	if err != nil {
		if opts.Once {
			return fail(f, ExitFailure, ErrCodeGeneric, "reconcile pass failed", err)
		}
		appLog.Error("startup reconcile failed", err)
	}
	if opts.Once {
		exitErr := error(nil)
		if summary.Failed > 0 {
			exitErr = NewExitError(ExitFailure, "reconcile pass had failures")
		}
		if err := f.Success(summary, "reconcile pass finished\n"); err != nil {
			return err
		}
		return exitErr
	}

	if cfg.Reconcile != config.ReconcileDisabled {
		svc := scheduler.NewService(cfg.Location())
		id, err := svc.ScheduleReconcile(ctx, cfg.Reconcile, reconciler)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeInvalid, "failed to schedule reconcile", err)
		}
		svc.Start()
		defer svc.Stop()
		appLog.Info("reconcile scheduled", "spec", cfg.Reconcile, "next", svc.Next(id))
	}

	err = web.StartServer(ctx, cfg, web.Deps{
		Store:      a.store,
		Generator:  a.generator,
		Validator:  a.validator,
		Reconciler: reconciler,
		Clock:      a.clock,
	})
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeGeneric, "HTTP server failed", err)
	}
	appLog.Info("chorecal exiting")
	return nil
}
