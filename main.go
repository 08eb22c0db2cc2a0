package main

import (
	"os"

	"github.com/melroyanthony/llm-guardrails/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
