package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewServerCmd создаёт группу команд для управления серверами.
func NewServerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage servers",
	}

	cmd.AddCommand(
		newServerListCmd(clientFn, outputFn),
		newServerCreateCmd(clientFn, outputFn),
		newServerShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newServerListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			servers, err := client.ListServers()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "HOST", "PORT", "STATUS", "LOCAL"}
			rows := make([][]string, len(servers))
			for i, s := range servers {
				rows[i] = []string{s.ID, s.Name, s.Host, strconv.Itoa(s.Port), s.Status, strconv.FormatBool(s.IsLocal)}
			}

			out.Print(headers, rows, servers)
			return nil
		},
	}
}

func newServerCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateServerRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			server, err := client.CreateServer(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Server created: %s", server.ID))
			out.Print(
				[]string{"ID", "NAME", "HOST", "PORT", "STATUS"},
				[][]string{{server.ID, server.Name, server.Host, strconv.Itoa(server.Port), server.Status}},
				server,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Server name (required)")
	cmd.Flags().StringVar(&req.Host, "host", "", "SSH host")
	cmd.Flags().IntVar(&req.Port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&req.Username, "user", "", "SSH username")
	cmd.Flags().BoolVar(&req.IsLocal, "local", false, "Execute commands locally, without SSH")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newServerShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show server details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			server, err := client.GetServer(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "HOST", "PORT", "STATUS", "LOCAL", "CREATED"},
				[][]string{{server.ID, server.Name, server.Host, strconv.Itoa(server.Port), server.Status, strconv.FormatBool(server.IsLocal), server.CreatedAt}},
				server,
			)
			return nil
		},
	}
}
