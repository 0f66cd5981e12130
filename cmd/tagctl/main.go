// Command tagctl is a command-line client for reading and writing
// EtherNet/IP tags, and for driving a one-shot poll/publish cycle from
// a job file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tagctl",
		Short:         "Read and write EtherNet/IP CIP tags",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newWriteCmd())
	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
