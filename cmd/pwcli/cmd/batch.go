package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Read NDJSON request envelopes from stdin, one response per line",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		return rt.dispatcher.RunBatch(rt.execCtx(), os.Stdin, os.Stdout)
	},
}

var execCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: "Dispatch a single request envelope read from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		resp, err := rt.dispatcher.RunFile(rt.execCtx(), args[0])
		if err != nil {
			return fmt.Errorf("reading request file: %w", err)
		}
		return emitResponse(resp, flagFormat)
	},
}
