package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// GenerateResult is the JSON payload of the generate command.
type GenerateResult struct {
	TemplateID string           `json:"template_id"`
	Inserted   []OccurrenceView `json:"inserted"`
}

// FixResultView is the JSON payload of the fix command.
type FixResultView struct {
	Report   ReportView       `json:"report"`
	Deleted  []string         `json:"deleted"`
	Inserted []OccurrenceView `json:"inserted"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <template-id>",
		Short: "Materialize missing occurrences for a template",
		Long: `Insert the occurrences the template's pattern implies within the
look-ahead window that are not stored yet. Days that already hold an
occurrence are left alone, so running it twice inserts nothing new.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
}

func runGenerate(ctx context.Context, opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	a, err := openApp(ctx, opts, f)
	if err != nil {
		return err
	}
	defer a.Close()

	tmpl, err := a.template(ctx, f, id)
	if err != nil {
		return err
	}
	inserted, err := a.generator.Generate(ctx, tmpl)
	if err != nil {
		return fail(f, ExitFailure, ErrCodeGeneric,
			fmt.Sprintf("generate stopped after %d insert(s)", len(inserted)), err)
	}

	res := GenerateResult{TemplateID: tmpl.ID, Inserted: occurrenceViews(inserted)}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: inserted %d occurrence(s)\n", tmpl.ID, len(res.Inserted))
	for _, o := range res.Inserted {
		fmt.Fprintf(&b, "  %s %s\n", o.DueDate, o.ID)
	}
	return f.Success(res, b.String())
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <template-id>",
		Short: "Report drift between a template's pattern and its occurrences",
		Long: `Recompute the dates the pattern implies within the look-ahead window
and compare them to the stored occurrences. Nothing is written.

Exits 1 when missing, duplicate or extra occurrences are found.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
}

func runValidate(ctx context.Context, opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	a, err := openApp(ctx, opts, f)
	if err != nil {
		return err
	}
	defer a.Close()

	tmpl, err := a.template(ctx, f, id)
	if err != nil {
		return err
	}
	report, err := a.validator.Validate(ctx, tmpl)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeGeneric, "validate failed", err)
	}

	view := reportView(report)
	if err := f.Success(view, view.text()); err != nil {
		return err
	}
	if !view.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("template %q has drifted", tmpl.ID))
	}
	return nil
}

// NewFixCommand creates the fix command.
func NewFixCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fix <template-id>",
		Short: "Repair drift for a template",
		Long: `Validate the template and repair what was found: duplicate days keep
one occurrence, occurrences on days the pattern no longer implies are
deleted, and missing days are inserted. Running it again changes nothing.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
}

func runFix(ctx context.Context, opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	a, err := openApp(ctx, opts, f)
	if err != nil {
		return err
	}
	defer a.Close()

	tmpl, err := a.template(ctx, f, id)
	if err != nil {
		return err
	}
	res, err := a.validator.Fix(ctx, tmpl)
	if err != nil {
		return fail(f, ExitFailure, ErrCodeGeneric,
			fmt.Sprintf("fix stopped after %d delete(s) and %d insert(s)", len(res.Deleted), len(res.Inserted)), err)
	}

	view := FixResultView{
		Report:   reportView(res.Report),
		Deleted:  res.Deleted,
		Inserted: occurrenceViews(res.Inserted),
	}
	if view.Deleted == nil {
		view.Deleted = []string{}
	}

	var b strings.Builder
	if !res.Changed() {
		fmt.Fprintf(&b, "%s: nothing to fix\n", tmpl.ID)
	} else {
		fmt.Fprintf(&b, "%s: deleted %d, inserted %d\n", tmpl.ID, len(view.Deleted), len(view.Inserted))
		for _, id := range view.Deleted {
			fmt.Fprintf(&b, "  - %s\n", id)
		}
		for _, o := range view.Inserted {
			fmt.Fprintf(&b, "  + %s %s\n", o.DueDate, o.ID)
		}
	}
	return f.Success(view, b.String())
}
