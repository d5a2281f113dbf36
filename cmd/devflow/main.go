// devflow — CLI для управления DevFlow через HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devflow/devflow/internal/cli"
)

// version подставляется через ldflags при сборке.
var version = "dev"

func main() {
	var (
		apiURL   string
		jsonMode bool
	)

	root := &cobra.Command{
		Use:           "devflow",
		Short:         "DevFlow — управление проектами и deployments",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&apiURL, "api-url", defaultAPIURL(), "адрес DevFlow API")
	root.PersistentFlags().BoolVar(&jsonMode, "json", false, "вывод в формате JSON")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonMode) }

	root.AddCommand(
		cli.NewServerCmd(clientFn, outputFn),
		cli.NewProjectCmd(clientFn, outputFn),
		cli.NewDeployCmd(clientFn, outputFn),
		cli.NewStageCmd(clientFn, outputFn),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultAPIURL() string {
	if v := os.Getenv("DEVFLOW_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}
