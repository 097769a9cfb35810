package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/turnclient"
)

func newSessionCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Create a session on the server and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.clientConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			id, err := client.CreateSession(cmd.Context())
			if err != nil {
				logx.Warnf("session: %v", err)
				fmt.Fprintln(cmd.ErrOrStderr(), turnclient.UserMessage(err, "Could not reach the server."))
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})
	return cmd
}
