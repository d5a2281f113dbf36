package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewProjectCmd создаёт группу команд для управления проектами.
func NewProjectCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		newProjectListCmd(clientFn, outputFn),
		newProjectCreateCmd(clientFn, outputFn),
		newProjectShowCmd(clientFn, outputFn),
		newProjectUpdateCmd(clientFn, outputFn),
		newProjectValidateCmd(clientFn, outputFn),
		newProjectUpdatesCmd(clientFn, outputFn),
		newProjectStatsCmd(clientFn, outputFn),
	)

	return cmd
}

func newProjectListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			projects, err := client.ListProjects()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "BRANCH", "AUTO_DEPLOY", "LAST_DEPLOYED"}
			rows := make([][]string, len(projects))
			for i, p := range projects {
				rows[i] = []string{p.ID, p.Name, p.Branch, strconv.FormatBool(p.AutoDeploy), p.LastDeployedAt}
			}

			out.Print(headers, rows, projects)
			return nil
		},
	}
}

func newProjectCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateProjectRequest
	var envVars []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new project",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if len(envVars) > 0 {
				req.EnvVariables = make(map[string]string)
				for _, kv := range envVars {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid env format %q, expected KEY=VALUE", kv)
					}
					req.EnvVariables[parts[0]] = parts[1]
				}
			}

			project, err := client.CreateProject(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Project created: %s", project.ID))
			out.Print(
				[]string{"ID", "NAME", "SLUG", "BRANCH"},
				[][]string{{project.ID, project.Name, project.Slug, project.Branch}},
				project,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Project name (required)")
	cmd.Flags().StringVar(&req.Slug, "slug", "", "URL-safe identifier, defines /var/www/<slug> (required)")
	cmd.Flags().StringVar(&req.ServerID, "server-id", "", "Server ID")
	cmd.Flags().StringVar(&req.RepositoryURL, "repo", "", "Git repository URL")
	cmd.Flags().StringVar(&req.Branch, "branch", "main", "Branch to deploy")
	cmd.Flags().StringVar(&req.Environment, "environment", "", "Environment label (production, staging)")
	cmd.Flags().StringSliceVar(&envVars, "env", nil, "Environment variables as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&req.AutoDeploy, "auto-deploy", false, "Enable scheduled auto-deploy")
	cmd.Flags().StringVar(&req.DeployCron, "cron", "", "Cron expression for auto-deploy checks")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("slug")

	return cmd
}

func newProjectShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show project details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			project, err := client.GetProject(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "BRANCH", "COMMIT", "LAST_DEPLOYED"},
				[][]string{{project.ID, project.Name, project.Branch, shortHash(project.CurrentCommitHash), project.LastDeployedAt}},
				project,
			)
			return nil
		},
	}
}

func newProjectUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, serverID, repo, branch, cron string
	var autoDeploy bool

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateProjectRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("server-id") {
				req.ServerID = &serverID
			}
			if cmd.Flags().Changed("repo") {
				req.RepositoryURL = &repo
			}
			if cmd.Flags().Changed("branch") {
				req.Branch = &branch
			}
			if cmd.Flags().Changed("auto-deploy") {
				req.AutoDeploy = &autoDeploy
			}
			if cmd.Flags().Changed("cron") {
				req.DeployCron = &cron
			}

			project, err := client.UpdateProject(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Project updated: %s", project.ID))
			out.Print(
				[]string{"ID", "NAME", "BRANCH", "AUTO_DEPLOY"},
				[][]string{{project.ID, project.Name, project.Branch, strconv.FormatBool(project.AutoDeploy)}},
				project,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&serverID, "server-id", "", "Server ID")
	cmd.Flags().StringVar(&repo, "repo", "", "Git repository URL")
	cmd.Flags().StringVar(&branch, "branch", "", "Branch to deploy")
	cmd.Flags().BoolVar(&autoDeploy, "auto-deploy", false, "Enable scheduled auto-deploy")
	cmd.Flags().StringVar(&cron, "cron", "", "Cron expression for auto-deploy checks")

	return cmd
}

func newProjectValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Check that a project is ready to deploy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.ValidateProject(args[0])
			if err != nil {
				return err
			}

			if result.Valid {
				out.Success("Project is ready to deploy")
				return nil
			}

			for _, msg := range result.Errors {
				out.Error(msg)
			}
			return fmt.Errorf("project is not ready to deploy")
		},
	}
}

func newProjectUpdatesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "updates ID",
		Short: "Check for new commits in origin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.CheckUpdates(args[0])
			if err != nil {
				return err
			}

			if status.Error != "" {
				return fmt.Errorf("update check failed: %s", status.Error)
			}

			out.Print(
				[]string{"HAS_UPDATES", "COMMITS_BEHIND", "LOCAL", "REMOTE"},
				[][]string{{
					strconv.FormatBool(status.HasUpdates),
					strconv.Itoa(status.CommitsBehind),
					shortHash(status.LocalCommit),
					shortHash(status.RemoteCommit),
				}},
				status,
			)
			return nil
		},
	}
}

func newProjectStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats ID",
		Short: "Show deployment statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.GetStats(args[0], days)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"TOTAL", "SUCCESSFUL", "FAILED", "SUCCESS_RATE", "AVG_DURATION"},
				[][]string{{
					strconv.Itoa(stats.Total),
					strconv.Itoa(stats.Successful),
					strconv.Itoa(stats.Failed),
					fmt.Sprintf("%.1f%%", stats.SuccessRate),
					fmt.Sprintf("%.1fs", stats.AvgDuration),
				}},
				stats,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Trailing window in days")

	return cmd
}

// shortHash сокращает commit hash для табличного вывода.
func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
