package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"scribe/internal/clix"
	"scribe/internal/models"
)

var jobsShowResult bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and operate transcription jobs",
}

var jobsDispatchCmd = &cobra.Command{
	Use:   "dispatch <job-id>",
	Short: "Enqueue a persisted job for processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		job, err := appInstance.JobStore.GetJob(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		if models.IsTerminalStatus(job.Status) {
			return fmt.Errorf("job %s is already %s", job.ID, job.Status)
		}
		info, err := appInstance.JobClient.DispatchJob(cmd.Context(), job.ID)
		if err != nil {
			return fmt.Errorf("failed to dispatch job: %w", err)
		}
		fmt.Printf("Dispatched job %s (task %s, queue %s)\n", job.ID, info.ID, info.Queue)
		return nil
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Process a job in this process instead of through the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := appInstance.Processor.Process(cmd.Context(), args[0], true); err != nil {
			return fmt.Errorf("job %s failed: %w", args[0], err)
		}
		return printJob(cmd, args[0], true)
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's status, progress and result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJob(cmd, args[0], jobsShowResult)
	},
}

var jobsDeadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List tasks whose delivery attempts are exhausted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		tasks, err := appInstance.JobClient.ListDead(cmd.Context(), pagination.Limit)
		if err != nil {
			return fmt.Errorf("failed to list dead tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No dead tasks.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Task ID", "Queue", "Retried", "Last Error", "Last Failed At"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, t := range tasks {
			table.Append([]string{
				t.ID,
				t.Queue,
				fmt.Sprintf("%d/%d", t.Retried, t.MaxRetry),
				t.LastErr,
				t.LastFailedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

var jobsRequeueCmd = &cobra.Command{
	Use:   "requeue <task-id>",
	Short: "Move a dead task back to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := appInstance.JobClient.Requeue(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to requeue task: %w", err)
		}
		fmt.Printf("Requeued task %s\n", args[0])
		return nil
	},
}

func printJob(cmd *cobra.Command, jobID string, withResult bool) error {
	appInstance, err := GetAppFromContext(cmd.Context())
	if err != nil {
		return err
	}
	job, err := appInstance.JobStore.GetJob(cmd.Context(), jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	fmt.Printf("Job:      %s\n", job.ID)
	fmt.Printf("Status:   %s\n", colorStatus(job.Status))
	fmt.Printf("Progress: %d%%\n", job.Progress)
	if org := job.Org(); org != "" {
		fmt.Printf("Org:      %s\n", org)
	}
	fmt.Printf("Files:    %d\n", len(job.Files))
	fmt.Printf("Updated:  %s\n", job.UpdatedAt.Format("2006-01-02 15:04:05"))
	if job.Error != nil {
		fmt.Printf("Error:    %s\n", color.RedString(*job.Error))
	}
	if withResult && len(job.Result) > 0 {
		var pretty json.RawMessage = job.Result
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format result: %w", err)
		}
		fmt.Println(string(out))
	}
	return nil
}

func colorStatus(status string) string {
	switch status {
	case models.JobStatusCompleted:
		return color.GreenString(status)
	case models.JobStatusFailed:
		return color.RedString(status)
	case models.JobStatusProcessing:
		return color.YellowString(status)
	default:
		return status
	}
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsDispatchCmd, jobsRunCmd, jobsStatusCmd, jobsDeadCmd, jobsRequeueCmd)

	jobsStatusCmd.Flags().BoolVar(&jobsShowResult, "result", false, "Print the stored result JSON")
	jobsDeadCmd.Flags().Int("limit", 20, "Maximum number of dead tasks to show")
}
