package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"conversation-orchestrator/internal/common/logger"
)

var (
	convUser    string
	convSession string
	convLast    int
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Inspect or clear conversation memory",
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the newest messages of a conversation",
	Long: `Print the newest messages of a conversation, oldest first.

Examples:
  orchestratorctl conversations show --user user-1 --session session_0042
  orchestratorctl conversations show --user user-1 --session session_0042 --last 5 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			msgs, err := s.app.Memory.Recent(cmd.Context(), convUser, convSession, convLast)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), msgs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tROLE\tCONTENT")
			for _, m := range msgs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.CreatedAt.Format(time.RFC3339), m.Role, logger.Truncate(m.Content, 80))
			}
			return w.Flush()
		})
	},
}

var conversationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete a conversation from memory",
	Long: `Delete a conversation from memory. Escalation tickets are kept.

Examples:
  orchestratorctl conversations clear --user user-1 --session session_0042`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			if err := s.app.Memory.Clear(cmd.Context(), convUser, convSession); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"cleared": true, "userId": convUser, "sessionId": convSession})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s/%s\n", convUser, convSession)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{conversationsShowCmd, conversationsClearCmd} {
		c.Flags().StringVar(&convUser, "user", "", "user id (required)")
		c.Flags().StringVar(&convSession, "session", "", "session id (required)")
		_ = c.MarkFlagRequired("user")
		_ = c.MarkFlagRequired("session")
	}
	conversationsShowCmd.Flags().IntVar(&convLast, "last", 20, "number of messages")

	conversationsCmd.AddCommand(conversationsShowCmd, conversationsClearCmd)
	rootCmd.AddCommand(conversationsCmd)
}
