package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/models"
	"conversation-orchestrator/internal/stores/escalations"
)

var (
	listStatus string
	listSkip   int
	listLimit  int
	countState string
)

var escalationsCmd = &cobra.Command{
	Use:     "escalations",
	Aliases: []string{"esc"},
	Short:   "Manage human handoff tickets",
}

var escalationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalations, newest first",
	Long: `List escalations, newest first.

Examples:
  orchestratorctl escalations list
  orchestratorctl escalations list --status pending --limit 20
  orchestratorctl escalations list --skip 100 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatus(listStatus)
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), func(s *session) error {
			records, err := s.app.Escalations.List(cmd.Context(), escalations.ListFilter{
				Status: status,
				Skip:   listSkip,
				Limit:  listLimit,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), records)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tUSER\tCREATED\tQUERY")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Status, r.UserID, r.CreatedAt.Format(time.RFC3339), logger.Truncate(r.Query, 60))
			}
			return w.Flush()
		})
	},
}

var escalationsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count escalations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatus(countState)
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), func(s *session) error {
			n, err := s.app.Escalations.Count(cmd.Context(), status)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"status": status, "count": n})
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var escalationsResolveCmd = &cobra.Command{
	Use:   "resolve ESCALATION_ID RESOLUTION",
	Short: "Resolve a pending escalation",
	Long: `Resolve a pending escalation.

The resolution is written to the ticket and delivered to the user's
conversation as an operator reply.

Examples:
  orchestratorctl escalations resolve ESC-1A2B3C4D "Your refund was issued today."`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, resolution := args[0], args[1]
		return withSession(cmd.Context(), func(s *session) error {
			if err := s.app.Conductor.HandleEscalationResolution(cmd.Context(), id, resolution); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"resolved": true, "escalationId": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s\n", id)
			return nil
		})
	},
}

func parseStatus(raw string) (models.EscalationStatus, error) {
	switch s := models.EscalationStatus(raw); s {
	case "", models.EscalationPending, models.EscalationResolved, models.EscalationError:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q (want pending, resolved or error)", raw)
	}
}

func init() {
	escalationsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	escalationsListCmd.Flags().IntVar(&listSkip, "skip", 0, "records to skip")
	escalationsListCmd.Flags().IntVar(&listLimit, "limit", 100, "maximum records")
	escalationsCountCmd.Flags().StringVar(&countState, "status", "", "filter by status")

	escalationsCmd.AddCommand(escalationsListCmd, escalationsCountCmd, escalationsResolveCmd)
	rootCmd.AddCommand(escalationsCmd)
}
