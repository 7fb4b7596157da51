package main

import (
	"fmt"
	"os"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// exitConfig is returned when the screening configuration is rejected.
const exitConfig = 2

func main() {
	if err := newRootCmd().Execute(); err != nil {
		msg, code := exitStatus(err)
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(code)
	}
}

// exitStatus maps a command error to the message and exit code shown to the
// user.
func exitStatus(err error) (string, int) {
	if config.IsConfigurationError(err) {
		return fmt.Sprintf("Invalid screening configuration: %v\nNo screening was run; fix the config file and retry.", err), exitConfig
	}
	return fmt.Sprintf("Error: %v", err), 1
}
