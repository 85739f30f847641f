package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify-go/dify"
)

func (a *App) newConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, rename and delete conversations",
	}
	cmd.AddCommand(a.newConversationsListCommand())
	cmd.AddCommand(a.newConversationsRenameCommand())
	cmd.AddCommand(a.newConversationsDeleteCommand())
	return cmd
}

func (a *App) newConversationsListCommand() *cobra.Command {
	var (
		lastID string
		limit  int
		pinned string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &dify.ConversationsRequest{LastID: lastID, Limit: limit}
			if pinned != "" {
				v, err := strconv.ParseBool(pinned)
				if err != nil {
					return exitWithCode(ExitValidation, fmt.Errorf("invalid --pinned %q: want true or false", pinned))
				}
				req.Pinned = &v
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			req.User = a.endUser()

			page, err := client.Conversations(cmd.Context(), req)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(page)
			}
			if len(page.Data) == 0 {
				fmt.Fprintln(a.stdout, "No conversations.")
				return nil
			}
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCREATED")
			for _, c := range page.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, formatUnix(c.CreatedAt))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if page.HasMore {
				fmt.Fprintf(a.stderr, "more: --last-id %s\n", page.Data[len(page.Data)-1].ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lastID, "last-id", "", "id of the last conversation on the previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size, 1 to 100")
	cmd.Flags().StringVar(&pinned, "pinned", "", "only pinned (true) or unpinned (false) conversations")
	return cmd
}

func (a *App) newConversationsRenameCommand() *cobra.Command {
	var auto bool
	cmd := &cobra.Command{
		Use:   "rename <conversation-id> [name]",
		Short: "Rename a conversation, or let the app name it with --auto",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &dify.RenameRequest{ConversationID: args[0], AutoGenerate: auto}
			if len(args) == 2 {
				req.Name = args[1]
			}
			client, err := a.newClient()
			if err != nil {
				return err
			}
			req.User = a.endUser()

			conv, err := client.RenameConversation(cmd.Context(), req)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(conv)
			}
			fmt.Fprintf(a.stdout, "Renamed %s to %q.\n", conv.ID, conv.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&auto, "auto", false, "generate the name from the conversation")
	return cmd
}

func (a *App) newConversationsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			if err := client.DeleteConversation(cmd.Context(), args[0], a.endUser()); err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(map[string]string{"result": "success", "conversation_id": args[0]})
			}
			fmt.Fprintf(a.stdout, "Deleted conversation %s.\n", args[0])
			return nil
		},
	}
}

func (a *App) newMessagesCommand() *cobra.Command {
	var (
		firstID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Show a conversation's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			page, err := client.Messages(cmd.Context(), &dify.MessagesRequest{
				ConversationID: args[0],
				User:           a.endUser(),
				FirstID:        firstID,
				Limit:          limit,
			})
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(page)
			}
			for _, m := range page.Data {
				fmt.Fprintf(a.stdout, "[%s] %s\n", formatUnix(m.CreatedAt), m.ID)
				fmt.Fprintf(a.stdout, "> %s\n%s\n\n", m.Query, m.Answer)
			}
			if page.HasMore && len(page.Data) > 0 {
				fmt.Fprintf(a.stderr, "more: --first-id %s\n", page.Data[0].ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&firstID, "first-id", "", "id of the first message on the current page")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size, 1 to 100")
	return cmd
}

func (a *App) newFeedbackCommand() *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "feedback <message-id> <like|dislike|none>",
		Short: "Rate a message, or revoke a rating with none",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rating dify.Rating
			switch args[1] {
			case "like":
				rating = dify.RatingLike
			case "dislike":
				rating = dify.RatingDislike
			case "none":
				rating = dify.RatingNone
			default:
				return exitWithCode(ExitValidation, fmt.Errorf("invalid rating %q: want like, dislike or none", args[1]))
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			err = client.MessageFeedback(cmd.Context(), &dify.FeedbackRequest{
				MessageID: args[0],
				Rating:    rating,
				User:      a.endUser(),
				Content:   content,
			})
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(map[string]string{"result": "success", "message_id": args[0]})
			}
			fmt.Fprintf(a.stdout, "Recorded %s for message %s.\n", args[1], args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "comment", "", "free-text feedback")
	return cmd
}

func (a *App) newSuggestedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "suggested <message-id>",
		Short: "List suggested follow-up questions for a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			questions, err := client.SuggestedQuestions(cmd.Context(), args[0], a.endUser())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(questions)
			}
			for _, q := range questions {
				fmt.Fprintf(a.stdout, "- %s\n", q)
			}
			return nil
		},
	}
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).UTC().Format(time.DateTime)
}
