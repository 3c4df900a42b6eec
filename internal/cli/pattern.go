package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chorecal/internal/ics"
	"chorecal/internal/recurrence"
)

const defaultPreviewCount = 10

// DescribeResult is the JSON payload of the describe command.
type DescribeResult struct {
	Description string `json:"description"`
	RRule       string `json:"rrule,omitempty"`
}

// PreviewResult is the JSON payload of the preview command.
type PreviewResult struct {
	Description string   `json:"description"`
	Anchor      string   `json:"anchor"`
	After       string   `json:"after"`
	Dates       []string `json:"dates"`
}

type patternOptions struct {
	*RootOptions
	Anchor string
	After  string
	Count  int
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &patternOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "describe [pattern-file]",
		Short: "Describe a recurrence pattern in English",
		Long: `Read a pattern document (YAML or JSON) from a file, or stdin when no
file is given, and print its English description.

With --anchor the equivalent RRULE is printed too, when one exists.

Examples:
  echo '{frequency: monthly, nthWeekdayOfMonth: {weekday: 2, nth: 3}}' | chorecal describe
  chorecal describe rent.yaml --anchor 2025-01-30`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(opts, args, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Anchor, "anchor", "", "anchor date (YYYY-MM-DD) for the RRULE form")
	return cmd
}

func runDescribe(opts *patternOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	p, err := readPattern(args, cmd.InOrStdin())
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalid, "failed to read pattern", err)
	}

	res := DescribeResult{Description: recurrence.Describe(p)}
	text := res.Description + "\n"
	if opts.Anchor != "" {
		anchor, err := recurrence.ParseDate(opts.Anchor)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeInvalid, "invalid --anchor", err)
		}
		rule, err := ics.RRuleString(p, anchor)
		switch {
		case err == nil:
			res.RRule = rule
			text += "RRULE:" + rule + "\n"
		case errors.Is(err, ics.ErrNotExpressible):
			f.VerboseLog("no RRULE form: %v", err)
		default:
			return fail(f, ExitCommandError, ErrCodeInvalid, "failed to map pattern to RRULE", err)
		}
	}
	return f.Success(res, text)
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &patternOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "preview [pattern-file]",
		Short: "List the next dates a pattern produces",
		Long: `Evaluate a pattern document (YAML or JSON, from a file or stdin)
without touching the database and print the next dates it implies
strictly after --after (default: today).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(opts, args, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Anchor, "anchor", "", "anchor date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("anchor")
	cmd.Flags().StringVar(&opts.After, "after", "", "list dates after this day, YYYY-MM-DD (default today)")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", defaultPreviewCount, "number of dates to list")
	return cmd
}

func runPreview(opts *patternOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	p, err := readPattern(args, cmd.InOrStdin())
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalid, "failed to read pattern", err)
	}
	anchor, err := recurrence.ParseDate(opts.Anchor)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalid, "invalid --anchor", err)
	}
	after := recurrence.DateOf(time.Now())
	if opts.Clock != nil {
		after = recurrence.DateOf(opts.Clock.Now())
	}
	if opts.After != "" {
		if after, err = recurrence.ParseDate(opts.After); err != nil {
			return fail(f, ExitCommandError, ErrCodeInvalid, "invalid --after", err)
		}
	}
	if opts.Count <= 0 {
		return fail(f, ExitCommandError, ErrCodeInvalid, "--count must be positive", nil)
	}

	res := PreviewResult{
		Description: recurrence.Describe(p),
		Anchor:      day(anchor),
		After:       day(after),
		Dates:       days(recurrence.NextOccurrences(p, anchor, after, opts.Count)),
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (anchor %s)\n", res.Description, res.Anchor)
	if len(res.Dates) == 0 {
		fmt.Fprintf(&b, "  no dates after %s\n", res.After)
	}
	for _, d := range res.Dates {
		fmt.Fprintf(&b, "  %s\n", d)
	}
	return f.Success(res, b.String())
}

// readPattern decodes a pattern document from args[0], or from stdin when
// args is empty. YAML is a superset of JSON, so both are accepted.
func readPattern(args []string, stdin io.Reader) (recurrence.Pattern, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return recurrence.Pattern{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return recurrence.Pattern{}, errors.New("empty pattern document")
	}

	var p recurrence.Pattern
	if err := yaml.Unmarshal(data, &p); err != nil {
		return recurrence.Pattern{}, err
	}
	return p, nil
}
