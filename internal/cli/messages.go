package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// DefaultWatchInterval matches how often the browser client polled
const DefaultWatchInterval = 2 * time.Second

func newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"msg"},
		Short:   "Message commands",
	}

	cmd.AddCommand(newMessagesListCmd())
	cmd.AddCommand(newMessagesSendCmd())
	cmd.AddCommand(newMessagesDeleteCmd())

	return cmd
}

func newMessagesListCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages in the current room",
		Long: `List messages in the current room.

With --watch the room is polled until interrupted and only new messages are
printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				if interval <= 0 {
					return errors.New("--interval must be positive")
				}
				return watchMessages(cmd.Context(), output(cmd), interval)
			}

			var result Feed
			if err := client.Get(cmd.Context(), "/api/messages", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling for new messages")
	cmd.Flags().DurationVar(&interval, "interval", DefaultWatchInterval, "Poll interval for --watch")

	return cmd
}

// watchMessages polls the feed until ctx is cancelled, printing each
// message once
func watchMessages(ctx context.Context, out *Output, interval time.Duration) error {
	seen := make(map[int64]bool)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var feed Feed
		err := client.Get(ctx, "/api/messages", &feed)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Code == "UNAUTHORIZED" {
				return err
			}
			// Transient failures (rate limits, a moved room) are reported and polling continues
			out.PrintMessage("poll failed: " + err.Error())
		default:
			// Drop IDs that have expired so the set stays bounded
			live := make(map[int64]bool, len(feed.Messages))
			for _, m := range feed.Messages {
				live[m.ID] = true
				if !seen[m.ID] {
					out.PrintChatMessage(m)
				}
			}
			seen = live
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func newMessagesSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <text...>",
		Short: "Send a message to the current room",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"content": strings.Join(args, " ")}
			var result StatusResult

			if err := client.Post(cmd.Context(), "/api/messages", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newMessagesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid message id %q", args[0])
			}

			req := map[string]int64{"message_id": id}
			var result StatusResult

			if err := client.Delete(cmd.Context(), "/api/messages", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
