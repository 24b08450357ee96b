// Command orchestratorctl is the operator CLI for the conversation orchestrator.
//
// Usage:
//
//	orchestratorctl [--config path] <command> [args]
//
// Commands:
//
//	ask            - run one query through the conductor
//	escalations    - list, count and resolve human handoff tickets
//	conversations  - show or clear conversation memory
//	activities     - inspect the activity catalog and check job variables
package main

import (
	"fmt"
	"os"

	"conversation-orchestrator/cmd/orchestratorctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
