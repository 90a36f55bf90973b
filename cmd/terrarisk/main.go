// terrarisk runs the hazard analysis pipeline as a server or one-shot CLI.
//
// Usage:
//
//	terrarisk serve [--port=:8000]
//	terrarisk analyze --query="..." [--hazard=flood] [--geo=TX] [-o response.json]
//	terrarisk plan --query="..."
//	terrarisk scenario <hazard>
//	terrarisk stress <portfolio-id>
//	terrarisk eval [--dataset=golden_qa.jsonl]
//	terrarisk verify <response.json>
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
