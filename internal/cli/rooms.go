package cli

import (
	"github.com/spf13/cobra"
)

func newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rooms",
		Aliases: []string{"room"},
		Short:   "Private room commands",
	}

	cmd.AddCommand(newRoomsCreateCmd())
	cmd.AddCommand(newRoomsJoinCmd())
	cmd.AddCommand(newRoomsLeaveCmd())
	cmd.AddCommand(newRoomsCurrentCmd())

	return cmd
}

func newRoomsCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a private room and move into it",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"name": name}
			var result Room

			if err := client.Post(cmd.Context(), "/api/rooms", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Room name (defaults to \"Room <code>\")")

	return cmd
}

func newRoomsJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join a private room by its six-digit code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"code": args[0]}
			var result Room

			if err := client.Post(cmd.Context(), "/api/rooms/join", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newRoomsLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Return to the global room",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result StatusResult

			if err := client.Post(cmd.Context(), "/api/rooms/leave", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newRoomsCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the current room",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result CurrentRoom

			if err := client.Get(cmd.Context(), "/api/rooms/current", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
