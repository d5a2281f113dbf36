package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStageCmd создаёт группу команд для управления pipeline stages.
func NewStageCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Manage pipeline stages",
	}

	cmd.AddCommand(
		newStageListCmd(clientFn, outputFn),
		newStageCreateCmd(clientFn, outputFn),
		newStageUpdateCmd(clientFn, outputFn),
		newStageDeleteCmd(clientFn, outputFn),
		newStageEnableCmd(clientFn, outputFn),
		newStageDisableCmd(clientFn, outputFn),
	)

	return cmd
}

func stageRow(s *StageResponse) []string {
	return []string{
		s.ID, s.Name, s.Type, strconv.Itoa(s.Order),
		strconv.Itoa(len(s.Commands)),
		strconv.FormatBool(s.IsEnabled),
		strconv.FormatBool(s.ContinueOnFailure),
	}
}

var stageHeaders = []string{"ID", "NAME", "TYPE", "ORDER", "COMMANDS", "ENABLED", "CONTINUE_ON_FAILURE"}

func newStageListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List pipeline stages of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stages, err := client.ListStages(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(stages))
			for i := range stages {
				rows[i] = stageRow(&stages[i])
			}

			out.Print(stageHeaders, rows, stages)
			return nil
		},
	}
}

func newStageCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateStageRequest
	var commands []string

	cmd := &cobra.Command{
		Use:   "create PROJECT_ID",
		Short: "Create a pipeline stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req.Commands = commands

			stage, err := client.CreateStage(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Stage created: %s", stage.ID))
			out.Print(stageHeaders, [][]string{stageRow(stage)}, stage)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Stage name (required)")
	cmd.Flags().StringVar(&req.Type, "type", "deploy", "Stage phase: pre_deploy, deploy, post_deploy")
	cmd.Flags().IntVar(&req.Order, "order", 0, "Order within the phase")
	cmd.Flags().StringArrayVar(&commands, "command", nil, "Shell command (repeatable, executed in order)")
	cmd.Flags().BoolVar(&req.ContinueOnFailure, "continue-on-failure", false, "Do not abort the pipeline if this stage fails")
	cmd.Flags().IntVar(&req.TimeoutSec, "timeout", 0, "Stage timeout in seconds")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newStageUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, stageType string
	var order, timeout int
	var commands []string
	var continueOnFailure bool

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a pipeline stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateStageRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("type") {
				req.Type = &stageType
			}
			if cmd.Flags().Changed("order") {
				req.Order = &order
			}
			if cmd.Flags().Changed("command") {
				req.Commands = &commands
			}
			if cmd.Flags().Changed("continue-on-failure") {
				req.ContinueOnFailure = &continueOnFailure
			}
			if cmd.Flags().Changed("timeout") {
				req.TimeoutSec = &timeout
			}

			stage, err := client.UpdateStage(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Stage updated: %s", stage.ID))
			out.Print(stageHeaders, [][]string{stageRow(stage)}, stage)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Stage name")
	cmd.Flags().StringVar(&stageType, "type", "", "Stage phase: pre_deploy, deploy, post_deploy")
	cmd.Flags().IntVar(&order, "order", 0, "Order within the phase")
	cmd.Flags().StringArrayVar(&commands, "command", nil, "Shell command (repeatable, replaces the list)")
	cmd.Flags().BoolVar(&continueOnFailure, "continue-on-failure", false, "Do not abort the pipeline if this stage fails")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Stage timeout in seconds")

	return cmd
}

func newStageDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a pipeline stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteStage(args[0]); err != nil {
				return err
			}

			out.Success("Stage deleted: " + args[0])
			return nil
		},
	}
}

func newStageEnableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable a pipeline stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stage, err := client.EnableStage(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Stage enabled: %s (%s)", stage.ID, stage.Name))
			return nil
		},
	}
}

func newStageDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a pipeline stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stage, err := client.DisableStage(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Stage disabled: %s (%s)", stage.ID, stage.Name))
			return nil
		},
	}
}
