// Command cardinal runs the reverse proxy gateway. Its CLI shape (a
// single `run --config` subcommand built on spf13/cobra, with exit code
// 1 on any error) follows caddyserver-caddy/cmd/main.go and cobra.go's
// cmdRun wiring.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
