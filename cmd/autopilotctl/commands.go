package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// cli holds the global flags and the service factory shared by every
// command.
type cli struct {
	cfgFile string
	jsonOut bool
	out     io.Writer
	open    func(ctx context.Context, cfgFile string) (*autopilot.Service, func() error, error)
}

// withService opens the service, runs fn and closes it again.
func (c *cli) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *autopilot.Service) error) error {
	ctx := cmd.Context()
	svc, closeFn, err := c.open(ctx, c.cfgFile)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "autopilotctl",
		Short:         "Operate the campaign autopilot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "config/config.yaml", "config file")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		runCommand(c),
		rollbackCommand(c),
		opportunityCommand(c),
		ruleCommand(c),
		rulesCommand(c),
		actionsCommand(c),
		opportunitiesCommand(c),
		runsCommand(c),
	)
	return root
}

func runCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one evaluation cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd, func(ctx context.Context, svc *autopilot.Service) error {
				s, err := svc.RunCycle(ctx, domain.TriggerManual)
				if errors.Is(err, autopilot.ErrCycleInProgress) {
					return errors.New("another cycle is running, try again later")
				}
				if err != nil {
					return err
				}
				return c.printSummary(s)
			})
		},
	}
}

func rollbackCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <action-id>",
		Short: "Restore the campaign state an action changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(ctx context.Context, svc *autopilot.Service) error {
				a, err := svc.Rollback(ctx, args[0])
				if err != nil {
					return err
				}
				return c.printActions([]domain.AutonomousAction{*a})
			})
		},
	}
}

func opportunityCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opportunity",
		Short: "Review detected opportunities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <id> <status>",
		Short: "Move an opportunity to in_progress, resolved or dismissed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(ctx context.Context, svc *autopilot.Service) error {
				o, err := svc.ResolveOpportunity(ctx, args[0], domain.OpportunityStatus(args[1]))
				if err != nil {
					return err
				}
				return c.printOpportunities([]domain.Opportunity{*o})
			})
		},
	})
	return cmd
}

func ruleCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage autonomous rules",
	}
	var active bool
	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Activate or deactivate a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(ctx context.Context, svc *autopilot.Service) error {
				r, err := svc.ToggleRule(ctx, args[0], active)
				if err != nil {
					return err
				}
				return c.printRules([]domain.AutonomousRule{*r})
			})
		},
	}
	toggle.Flags().BoolVar(&active, "active", false, "whether the rule takes part in evaluation")
	_ = toggle.MarkFlagRequired("active")
	cmd.AddCommand(toggle)
	return cmd
}

func rulesCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List autonomous rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd, func(ctx context.Context, svc *autopilot.Service) error {
				rules, err := svc.Rules(ctx)
				if err != nil {
					return err
				}
				return c.printRules(rules)
			})
		},
	}
}

func actionsCommand(c *cli) *cobra.Command {
	var (
		campaignID string
		status     string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List recorded actions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := domain.ActionStatus(status)
			if st != "" && !st.Valid() {
				return errors.New("unknown action status " + status)
			}
			return c.withService(cmd, func(ctx context.Context, svc *autopilot.Service) error {
				actions, err := svc.Actions(ctx, autopilot.ActionFilter{CampaignID: campaignID, Status: st, Limit: limit})
				if err != nil {
					return err
				}
				return c.printActions(actions)
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "only actions on this campaign")
	cmd.Flags().StringVar(&status, "status", "", "only actions in this status")
	cmd.Flags().IntVar(&limit, "limit", autopilot.DefaultListLimit, "maximum rows")
	return cmd
}

func opportunitiesCommand(c *cli) *cobra.Command {
	var (
		campaignID string
		status     string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "opportunities",
		Short: "List detected opportunities, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := domain.OpportunityStatus(status)
			if st != "" && !st.Valid() {
				return errors.New("unknown opportunity status " + status)
			}
			return c.withService(cmd, func(ctx context.Context, svc *autopilot.Service) error {
				opps, err := svc.Opportunities(ctx, autopilot.OpportunityFilter{CampaignID: campaignID, Status: st, Limit: limit})
				if err != nil {
					return err
				}
				return c.printOpportunities(opps)
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "only opportunities on this campaign")
	cmd.Flags().StringVar(&status, "status", "", "only opportunities in this status")
	cmd.Flags().IntVar(&limit, "limit", autopilot.DefaultListLimit, "maximum rows")
	return cmd
}

func runsCommand(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent cycle summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd, func(ctx context.Context, svc *autopilot.Service) error {
				runs, err := svc.Runs(ctx, limit)
				if err != nil {
					return err
				}
				return c.printRuns(runs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}
