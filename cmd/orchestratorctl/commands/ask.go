package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	askUser    string
	askSession string
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one query through the conductor",
	Long: `Run one query through the conductor and print the response as JSON.

The answer is appended to the user's conversation memory exactly as a
handle-query job would.

Examples:
  orchestratorctl ask --user u-42 "What is the parental leave policy?"
  orchestratorctl ask --user u-42 --session session_0007 "And for contractors?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if askUser == "" {
			return fmt.Errorf("--user is required")
		}
		question := strings.Join(args, " ")

		ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
		defer cancel()

		return withSession(ctx, func(s *session) error {
			resp, err := s.app.Conductor.HandleQuery(ctx, question, askUser, askSession)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		})
	},
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "", "user id (required)")
	askCmd.Flags().StringVar(&askSession, "session", "", "session id (default: derived from user and question)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 3*time.Minute, "overall deadline")
	rootCmd.AddCommand(askCmd)
}
