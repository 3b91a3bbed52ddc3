// Package cmd implements pwcli's cobra command tree: the CLI shell that
// binds workspace/profile/runtime flags once on the root command and drives
// every subcommand through the shared dispatcher.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagWorkspace   string
	flagProfile     string
	flagNoProject   bool
	flagConfig      string
	flagFormat      string
	flagCDPEndpoint string
	flagDaemon      bool
	flagNoDaemon    bool
	flagLogLevel    string
	flagHeadless    bool
	flagHeadful     bool
	flagAuthFiles   []string
	flagStorageState string
)

var rootCmd = &cobra.Command{
	Use:   "pwcli",
	Short: "Workstation-grade browser automation CLI",
	Long:  "pwcli drives a persistent, daemon-managed browser session through a uniform command dispatcher, with a CDP relay for external automation clients.",
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagWorkspace, "workspace", "", "explicit workspace root (skips upward discovery)")
	flags.StringVar(&flagProfile, "profile", "", "profile name within the workspace")
	flags.BoolVar(&flagNoProject, "no-project", false, "use the current directory as the workspace root, ignoring project discovery")
	flags.StringVar(&flagConfig, "config", "", "workspace settings file (not read: settings always load from <workspace>/playwright/config.yaml)")
	flags.StringVar(&flagFormat, "format", "json", "output format for single-shot invocations (json|text)")
	flags.StringVar(&flagCDPEndpoint, "cdp-endpoint", "", "attach to an already-running browser at this CDP endpoint")
	flags.BoolVar(&flagDaemon, "daemon", true, "use the session daemon for browser reuse")
	flags.BoolVar(&flagNoDaemon, "no-daemon", false, "bypass the session daemon and always launch directly")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	flags.BoolVar(&flagHeadless, "headless", false, "launch the browser headless, overriding workspace settings")
	flags.BoolVar(&flagHeadful, "headful", false, "launch the browser headful, overriding workspace settings and --headless")
	flags.StringArrayVar(&flagAuthFiles, "auth-file", nil, "storage-state file to inject as cookies (repeatable)")
	flags.StringVar(&flagStorageState, "storage-state", "", "storage-state file to seed the session with")

	rootCmd.AddCommand(navigateCmd, clickCmd, fillCmd, pageCmd, screenshotCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(batchCmd, execCmd)
}

func daemonEnabled() bool {
	return flagDaemon && !flagNoDaemon
}
