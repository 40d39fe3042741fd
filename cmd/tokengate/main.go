// Command tokengate runs and operates the tokengate authentication server.
//
// Configuration is read from --config, TOKENGATE_CONFIG, ./config.yaml or
// /etc/tokengate/config.yaml, with TOKENGATE_* environment overrides. See
// pkg/config for the full list.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := RootCmd().Execute(); err != nil {
		slog.Error("tokengate failed", "error", err)
		os.Exit(1)
	}
}
