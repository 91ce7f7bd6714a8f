// Package main implements odmctl, the CLI driving drone-imagery
// orthorectification jobs on a remote photogrammetry compute node: it
// submits processing requests, tracks them to completion and offers
// administrative listing and cleanup of node-side jobs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes returned by the CLI.
const (
	exitOK         = 0
	exitFailure    = 1
	exitCancelled  = 2
	exitIncomplete = 3
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "odmctl",
		Short:        "Drone imagery orthorectification CLI",
		Long:         "odmctl submits drone imagery processing requests to a remote photogrammetry node, tracks the resulting jobs to completion and hands results to the archival catalog.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default: ./config.yaml)")

	root.AddCommand(
		newProcessCmd(&configPath),
		newListCmd(&configPath),
		newCleanupCmd(&configPath),
		newServeCmd(&configPath),
	)
	return root
}
