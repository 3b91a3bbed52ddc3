package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage daemon-held browser sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List browsers currently held by the daemon",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		if rt.daemon == nil {
			return fmt.Errorf("daemon is disabled (--no-daemon)")
		}
		ctx := rootCmdContext()
		browsers, err := rt.daemon.ListBrowsers(ctx)
		if err != nil {
			return fmt.Errorf("listing daemon sessions: %w", err)
		}
		raw, err := json.MarshalIndent(browsers, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

var sessionKillCmd = &cobra.Command{
	Use:   "kill [port]",
	Short: "Force-close a daemon-held browser by its CDP port",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		if rt.daemon == nil {
			return fmt.Errorf("daemon is disabled (--no-daemon)")
		}
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[0], err)
		}
		return rt.daemon.KillBrowser(rootCmdContext(), port)
	},
}

var sessionReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release this profile's session key, allowing the daemon to reap it when idle",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		if rt.daemon == nil {
			return fmt.Errorf("daemon is disabled (--no-daemon)")
		}
		return rt.daemon.ReleaseBrowser(rootCmdContext(), rt.sessionTemplate().SessionKey)
	},
}

func init() {
	sessionCmd.AddCommand(sessionListCmd, sessionKillCmd, sessionReleaseCmd)
}
