package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ent0n29/talkback/internal/termui"
	"github.com/ent0n29/talkback/internal/turnclient"
)

func newHistoryCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear a session's conversation history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [session-id]",
		Short: "Print the transcript of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.clientConfig()
			if err != nil {
				return err
			}
			id, err := sessionArg(cfg, args)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			h, err := client.FetchHistory(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("fetch history for %s: %w", id, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), termui.FormatHistory(h))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [session-id]",
		Short: "Forget everything said in a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.clientConfig()
			if err != nil {
				return err
			}
			id, err := sessionArg(cfg, args)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			if err := client.ClearHistory(cmd.Context(), id); err != nil {
				return fmt.Errorf("%s: %w", turnclient.UserMessage(err, "clear failed"), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chat history cleared for %s\n", id)
			return nil
		},
	})
	return cmd
}
