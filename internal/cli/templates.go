package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewTemplatesCommand creates the templates command.
func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List chore templates",
		Long: `List every stored template with its anchor date and schedule.

Templates declared in the config file are seeded before listing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplates(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runTemplates(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	a, err := openApp(ctx, opts, f)
	if err != nil {
		return err
	}
	defer a.Close()

	tmpls, err := a.store.ListTemplates(ctx)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeGeneric, "failed to list templates", err)
	}

	views := make([]TemplateView, 0, len(tmpls))
	for _, t := range tmpls {
		views = append(views, templateView(t))
	}

	var b strings.Builder
	if len(views) == 0 {
		b.WriteString("No templates.\n")
	} else {
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tANCHOR\tSCHEDULE")
		for _, v := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Title, v.AnchorDate, v.Schedule)
		}
		_ = tw.Flush()
	}
	return f.Success(views, b.String())
}
