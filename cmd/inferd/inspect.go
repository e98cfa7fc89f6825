package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"inferd/internal/service"
	"inferd/pkg/types"
)

// withService builds the service from the config, runs fn and closes it.
func withService(ctx context.Context, opts *rootOptions, fn func(*service.Service) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.log
	svc, err := service.New(ctx, cfg, service.Options{Logger: &log})
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func newChainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chain",
		Short: "Print providers in the order generation tries them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				return printProviders(cmd.OutOrStdout(), svc.Providers())
			})
		},
	}
}

func newSlotsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Print scheduler slots and budget usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				return printSlots(cmd.OutOrStdout(), svc.Status().Scheduler)
			})
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var system string
	var corrective bool
	cmd := &cobra.Command{
		Use:     "ask <input>",
		Short:   "Run one generation through the provider chain",
		Example: "  inferd ask --config inferd.yaml \"Summarize RFC 9110 in one line\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				resp, err := svc.Generate(cmd.Context(), types.GenerateRequest{
					Input:      strings.Join(args, " "),
					System:     system,
					Corrective: corrective,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
				fmt.Fprintf(cmd.ErrOrStderr(), "(provider: %s)\n", resp.Provider)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System instruction")
	cmd.Flags().BoolVar(&corrective, "corrective", false, "Retry a failed chain with the failure folded into the input")
	return cmd
}

func printProviders(w io.Writer, p types.ProvidersResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tCAPABILITIES\tSLOT")
	for i, c := range p.Chain {
		slot := c.Slot
		if slot == "" {
			slot = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, c.ID, strings.Join(c.Capabilities, ","), slot)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(p.Vision) > 0 {
		_, err := fmt.Fprintf(w, "vision: %s\n", strings.Join(p.Vision, " -> "))
		return err
	}
	return nil
}

func printSlots(w io.Writer, st types.SchedulerStatus) error {
	budget := "unlimited"
	if st.BudgetMB > 0 {
		budget = fmt.Sprintf("%d MB (margin %d MB)", st.BudgetMB, st.MarginMB)
	}
	fmt.Fprintf(w, "budget: %s, used: %d MB\n", budget, st.UsedMB)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tPRIORITY\tSIZE_MB\tLAST_USED")
	for _, s := range st.Slots {
		last := "never"
		if s.LastUsed > 0 {
			last = time.Unix(s.LastUsed, 0).Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Name, s.State, s.Priority, s.SizeMB, last)
	}
	return tw.Flush()
}
