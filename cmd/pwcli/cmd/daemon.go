package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/rebelnerd/pwcli/internal/daemon"
	"github.com/rebelnerd/pwcli/internal/logging"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the long-lived browser-holding daemon",
}

var flagDaemonForeground bool

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon (detached, unless --foreground)",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		if flagDaemonForeground {
			logger := logging.New("daemon")
			d := daemon.NewWithReapSchedule(logger, rt.scope.StateRoot(), rt.settings.Daemon.IdleTimeout(), rt.settings.Daemon.ReapInterval())
			return d.Run(rootCmdContext())
		}

		client := daemon.NewClient(rt.scope.StateRoot())
		if client.Reachable(rootCmdContext()) {
			fmt.Println("daemon already running")
			return nil
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating own executable: %w", err)
		}
		args := []string{"daemon", "start", "--foreground"}
		if flagWorkspace != "" {
			args = append(args, "--workspace", flagWorkspace)
		}
		if flagProfile != "" {
			args = append(args, "--profile", flagProfile)
		}
		proc := exec.Command(exe, args...)
		proc.Stdout = nil
		proc.Stderr = nil
		if err := proc.Start(); err != nil {
			return fmt.Errorf("spawning daemon: %w", err)
		}
		fmt.Printf("daemon started (pid %d)\n", proc.Process.Pid)
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the daemon to shut down, closing every browser it holds",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		client := daemon.NewClient(rt.scope.StateRoot())
		return client.Shutdown(rootCmdContext())
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is reachable",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		client := daemon.NewClient(rt.scope.StateRoot())
		if client.Reachable(rootCmdContext()) {
			fmt.Println("daemon is running")
			return nil
		}
		fmt.Println("daemon is not running")
		return nil
	},
}

func init() {
	daemonStartCmd.Flags().BoolVar(&flagDaemonForeground, "foreground", false, "run the daemon in this process instead of spawning a detached one")
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd)
}
