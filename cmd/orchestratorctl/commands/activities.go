package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"conversation-orchestrator/pkg/registry"
)

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "Inspect the activity catalog",
}

var activitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List task types and their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), catalog.Activities)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK TYPE\tCATEGORY\tSTATUS\tTIMEOUT\tDESCRIPTION")
		for _, a := range catalog.Activities {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.TaskType, a.Category, a.ImplementationStatus, a.Timeout, a.Description)
		}
		return w.Flush()
	},
}

var activitiesValidateCmd = &cobra.Command{
	Use:   "validate TASK_TYPE VARIABLES_FILE",
	Short: "Check job variables against a task type's input schema",
	Long: `Check job variables against a task type's input schema.

The file holds the JSON object a job would carry; "-" reads stdin.

Examples:
  orchestratorctl activities validate handle-query vars.json
  echo '{"query":"hi","userId":"u-1"}' | orchestratorctl activities validate handle-query -`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		var data []byte
		if args[1] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("failed to read variables: %w", err)
		}

		var vars map[string]interface{}
		if err := json.Unmarshal(data, &vars); err != nil {
			return fmt.Errorf("variables are not a JSON object: %w", err)
		}

		result, err := catalog.ValidateVariables(args[0], vars)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else if result.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: variables are valid\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: variables are invalid\n  %s\n", args[0], strings.Join(result.GetErrorMessages(), "\n  "))
		}
		if !result.Valid {
			return fmt.Errorf("validation failed for %s", args[0])
		}
		return nil
	},
}

func loadCatalog() (*registry.ActivityRegistry, error) {
	catalog, err := registry.Load(registryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity registry: %w", err)
	}
	if err := catalog.Check(); err != nil {
		return nil, fmt.Errorf("activity registry invalid: %w", err)
	}
	return catalog, nil
}

func init() {
	activitiesCmd.AddCommand(activitiesListCmd, activitiesValidateCmd)
	rootCmd.AddCommand(activitiesCmd)
}
