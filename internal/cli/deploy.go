package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDeployCmd создаёт группу команд для управления deployments.
func NewDeployCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Manage deployments",
	}

	cmd.AddCommand(
		newDeployStartCmd(clientFn, outputFn),
		newDeployListCmd(clientFn, outputFn),
		newDeployShowCmd(clientFn, outputFn),
		newDeployLogsCmd(clientFn, outputFn),
		newDeployCancelCmd(clientFn, outputFn),
		newDeployRollbackCmd(clientFn, outputFn),
		newDeployBatchCmd(clientFn, outputFn),
	)

	return cmd
}

func deploymentRow(d *DeploymentResponse) []string {
	duration := ""
	if d.DurationSeconds != nil {
		duration = strconv.FormatInt(*d.DurationSeconds, 10) + "s"
	}
	return []string{d.ID, d.Status, d.TriggeredBy, shortHash(d.CommitHash), duration, d.CreatedAt}
}

var deploymentHeaders = []string{"ID", "STATUS", "TRIGGERED_BY", "COMMIT", "DURATION", "CREATED"}

func newDeployStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start PROJECT_ID",
		Short: "Start a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.Deploy(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Deployment started: %s", d.ID))
			out.Print(deploymentHeaders, [][]string{deploymentRow(d)}, d)
			return nil
		},
	}
}

func newDeployListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List recent deployments of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deployments, err := client.ListDeployments(args[0], limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(deployments))
			for i := range deployments {
				rows[i] = deploymentRow(&deployments[i])
			}

			out.Print(deploymentHeaders, rows, deployments)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")

	return cmd
}

func newDeployShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show deployment details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.GetDeployment(args[0])
			if err != nil {
				return err
			}

			out.Print(deploymentHeaders, [][]string{deploymentRow(d)}, d)
			return nil
		},
	}
}

func newDeployLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "logs ID",
		Short: "Show deployment logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			logs, err := client.GetLogs(args[0])
			if err != nil {
				return err
			}

			out.Raw(logs.Logs)
			return nil
		},
	}
}

func newDeployCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an active deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.CancelDeployment(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Deployment cancelled: %s", d.ID))
			return nil
		},
	}
}

func newDeployRollbackCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "rollback PROJECT_ID",
		Short: "Rollback a project to a previous deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.Rollback(args[0], target)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Rollback started: %s", d.ID))
			out.Print(deploymentHeaders, [][]string{deploymentRow(d)}, d)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target deployment ID (last successful if not specified)")

	return cmd
}

func newDeployBatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "batch PROJECT_ID...",
		Short: "Deploy multiple projects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.BatchDeploy(args)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Batch deploy: %d started, %d failed", result.Successful, result.Failed))

			rows := make([][]string, len(result.Deployments))
			for i := range result.Deployments {
				rows[i] = deploymentRow(&result.Deployments[i])
			}
			out.Print(deploymentHeaders, rows, result)
			return nil
		},
	}
}
