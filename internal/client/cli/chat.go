package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (r *root) chatCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "chat", Short: "Manage locally stored chat history"}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [user]",
		Short: "Delete the chat sessions and messages of a user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				var arg string
				if len(args) == 1 {
					arg = args[0]
				}
				u, err := a.currentOr(arg)
				if err != nil {
					return err
				}
				if !a.store.DeleteChatHistory(ctx, u.ID.String()) {
					return fmt.Errorf("chat history of %s was not fully removed", u.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared chat history of %s\n", u.Name)
				return nil
			})
		},
	})
	return cmd
}
