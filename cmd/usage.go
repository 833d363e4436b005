package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"scribe/internal/clix"
	"scribe/internal/models"
)

var (
	subscribePlan      string
	subscribeStatus    string
	subscribePeriodEnd string
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Entitlement, usage records and billing seeds for an org",
}

var usageCheckCmd = &cobra.Command{
	Use:   "check <org-id>",
	Short: "Show whether an org may start a new job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		ent, err := appInstance.Ledger.CanStartJob(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to check entitlement: %w", err)
		}

		allowed := color.RedString("no")
		if ent.Allowed {
			allowed = color.GreenString("yes")
		}
		fmt.Printf("Org:                 %s\n", args[0])
		fmt.Printf("Allowed:             %s\n", allowed)
		fmt.Printf("Subscription active: %t\n", ent.SubscriptionActive)
		fmt.Printf("Usage this month:    %.2f min (since %s)\n", ent.UsageThisMonth, appInstance.Ledger.MonthStart().Format("2006-01-02"))
		fmt.Printf("Credits:             %.2f min\n", ent.Credits)
		return nil
	},
}

var usageListCmd = &cobra.Command{
	Use:   "list <org-id>",
	Short: "List an org's usage records, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		records, err := appInstance.Ledger.ListUsage(cmd.Context(), args[0], pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list usage: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No usage recorded.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Job", "Minutes", "Included", "Credits", "Overage", "Amount", "Created At"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, r := range records {
			table.Append([]string{
				r.JobID,
				minutesString(r.Minutes),
				minutesString(r.CoveredIncluded),
				minutesString(r.CreditsUsed),
				minutesString(r.RemainingOverLimit),
				fmt.Sprintf("%d.%02d", r.AmountCents/100, r.AmountCents%100),
				r.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

var usageGrantCmd = &cobra.Command{
	Use:   "grant <org-id> <minutes>",
	Short: "Add prepaid credit minutes to an org",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := clix.ParseMinutes(args[1])
		if err != nil {
			return err
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := appInstance.Billing.GrantCredits(cmd.Context(), args[0], minutes); err != nil {
			return fmt.Errorf("failed to grant credits: %w", err)
		}
		fmt.Printf("Granted %s credit minutes to %s\n", minutesString(minutes), args[0])
		return nil
	},
}

var usageSubscribeCmd = &cobra.Command{
	Use:   "subscribe <org-id>",
	Short: "Record an org's subscription plan and status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if subscribePlan == "" {
			return fmt.Errorf("--plan is required")
		}
		sub := &models.Subscription{OrgID: args[0], Status: subscribeStatus, PlanID: subscribePlan}
		if subscribePeriodEnd != "" {
			end, err := time.Parse("2006-01-02", subscribePeriodEnd)
			if err != nil {
				return fmt.Errorf("invalid --period-end: %w", err)
			}
			sub.CurrentPeriodEnd = &end
		}

		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := appInstance.Billing.UpsertSubscription(cmd.Context(), sub); err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}
		fmt.Printf("Org %s is on plan %s (%s, %s included minutes)\n",
			sub.OrgID, sub.PlanID, sub.Status, minutesString(appInstance.Ledger.IncludedMinutes(sub.PlanID)))
		return nil
	},
}

func minutesString(m float64) string {
	return strconv.FormatFloat(m, 'f', 2, 64)
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageCheckCmd, usageListCmd, usageGrantCmd, usageSubscribeCmd)

	clix.AddPaginationFlags(usageListCmd.Flags(), 20)

	usageSubscribeCmd.Flags().StringVar(&subscribePlan, "plan", "", "Plan ID, as configured under billing.plans")
	usageSubscribeCmd.Flags().StringVar(&subscribeStatus, "status", models.SubscriptionStatusActive, "Subscription status (active, trialing, canceled, ...)")
	usageSubscribeCmd.Flags().StringVar(&subscribePeriodEnd, "period-end", "", "End of the current billing period, YYYY-MM-DD")
}
