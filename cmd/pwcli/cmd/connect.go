package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"
)

var (
	flagConnectEndpoint string
	flagConnectClear    bool
	flagConnectLaunch   bool
	flagConnectDiscover bool
	flagConnectKill     bool
	flagConnectPort     int
	flagConnectProfile  string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to, launch, or discover a Chrome instance with remote debugging",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		switch {
		case flagConnectKill:
			return runConnectKill(rt, flagConnectPort)
		case flagConnectClear:
			rt.state.SetCDPEndpoint("")
			return persistAndShow(rt, map[string]any{"action": "cleared", "message": "CDP endpoint cleared"})
		case flagConnectLaunch:
			return runConnectLaunch(rt, flagConnectPort, flagConnectProfile)
		case flagConnectDiscover:
			return runConnectDiscover(rt, flagConnectPort)
		case flagConnectEndpoint != "":
			rt.state.SetCDPEndpoint(flagConnectEndpoint)
			return persistAndShow(rt, map[string]any{
				"action":   "set",
				"endpoint": flagConnectEndpoint,
				"message":  fmt.Sprintf("CDP endpoint set to %s", flagConnectEndpoint),
			})
		default:
			ep := rt.state.CDPEndpoint()
			if ep == "" {
				return printConnectResult(map[string]any{
					"action":  "show",
					"message": "No CDP endpoint configured. Use --launch or --discover to connect.",
				})
			}
			return printConnectResult(map[string]any{"action": "show", "endpoint": ep})
		}
	},
}

func init() {
	connectCmd.Flags().StringVar(&flagConnectEndpoint, "endpoint", "", "set the CDP endpoint directly")
	connectCmd.Flags().BoolVar(&flagConnectClear, "clear", false, "clear the stored CDP endpoint")
	connectCmd.Flags().BoolVar(&flagConnectLaunch, "launch", false, "launch a new Chrome with remote debugging enabled")
	connectCmd.Flags().BoolVar(&flagConnectDiscover, "discover", false, "discover an already-running Chrome with remote debugging")
	connectCmd.Flags().BoolVar(&flagConnectKill, "kill", false, "kill the Chrome process listening on --port")
	connectCmd.Flags().IntVar(&flagConnectPort, "port", 9222, "remote debugging port")
	connectCmd.Flags().StringVar(&flagConnectProfile, "profile", "", "Chrome profile directory name to launch with")
}

type cdpVersionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	Browser              string `json:"Browser"`
}

func fetchCDPVersion(port int) (*cdpVersionInfo, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/json/version", port))
	if err != nil {
		return nil, fmt.Errorf("connecting to port %d: %w", port, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response from port %d: %s", port, resp.Status)
	}
	var info cdpVersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("parsing CDP response: %w", err)
	}
	return &info, nil
}

var commonDebugPorts = []int{9222, 9223, 9224, 9225, 9226, 9227, 9228, 9229, 9230}

func discoverChrome(port int) (*cdpVersionInfo, error) {
	if info, err := fetchCDPVersion(port); err == nil {
		return info, nil
	}
	for _, p := range commonDebugPorts {
		if p == port {
			continue
		}
		if info, err := fetchCDPVersion(p); err == nil {
			return info, nil
		}
	}
	return nil, fmt.Errorf("no Chrome instance with remote debugging found; try --launch or start one with --remote-debugging-port=%d", port)
}

func launchChrome(port int, profile string) (*cdpVersionInfo, error) {
	bin, found := launcher.LookPath()
	if !found {
		return nil, fmt.Errorf("could not find a Chrome/Chromium executable on this system")
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--no-first-run",
		"--no-default-browser-check",
	}
	if profile != "" {
		if home, err := os.UserHomeDir(); err == nil {
			args = append(args, fmt.Sprintf("--profile-directory=%s", profile), "--user-data-dir="+home+"/.config/google-chrome")
		}
	}

	proc := exec.Command(bin, args...)
	proc.Stdin = nil
	proc.Stdout = nil
	proc.Stderr = nil
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("launching chrome at %s: %w", bin, err)
	}

	const attempts = 30
	var lastErr error
	for i := 0; i < attempts; i++ {
		time.Sleep(200 * time.Millisecond)
		info, err := fetchCDPVersion(port)
		if err == nil {
			return info, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("chrome launched but debugging endpoint never came up on port %d: %w", port, lastErr)
}

func killChromeOnPort(port int) (string, error) {
	if _, err := fetchCDPVersion(port); err != nil {
		return "", nil
	}
	out, err := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", port)).Output()
	if err != nil || len(out) == 0 {
		return "", fmt.Errorf("could not find process listening on port %d", port)
	}
	pids := splitLines(string(out))
	if len(pids) == 0 {
		return "", fmt.Errorf("no process found on port %d", port)
	}
	killed := make([]string, 0, len(pids))
	for _, pid := range pids {
		if err := exec.Command("kill", "-TERM", pid).Run(); err == nil {
			killed = append(killed, pid)
		}
	}
	if len(killed) == 0 {
		return "", fmt.Errorf("failed to kill process on port %d", port)
	}
	return joinComma(killed), nil
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if line := s[start:i]; line != "" {
				out = append(out, line)
			}
			start = i + 1
		}
	}
	if line := s[start:]; line != "" {
		out = append(out, line)
	}
	return out
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

func runConnectKill(rt *cliRuntime, port int) error {
	pids, err := killChromeOnPort(port)
	if err != nil {
		return err
	}
	if pids == "" {
		return printConnectResult(map[string]any{
			"action":  "kill",
			"port":    port,
			"message": fmt.Sprintf("no Chrome process found on port %d", port),
		})
	}
	rt.state.SetCDPEndpoint("")
	return persistAndShow(rt, map[string]any{
		"action":  "killed",
		"port":    port,
		"pids":    pids,
		"message": fmt.Sprintf("killed Chrome process(es) on port %d: %s", port, pids),
	})
}

func runConnectLaunch(rt *cliRuntime, port int, profile string) error {
	info, err := launchChrome(port, profile)
	if err != nil {
		return err
	}
	rt.state.SetCDPEndpoint(info.WebSocketDebuggerURL)
	return persistAndShow(rt, map[string]any{
		"action":   "launched",
		"endpoint": info.WebSocketDebuggerURL,
		"browser":  info.Browser,
		"port":     port,
		"message":  fmt.Sprintf("Chrome launched and connected on port %d", port),
	})
}

func runConnectDiscover(rt *cliRuntime, port int) error {
	info, err := discoverChrome(port)
	if err != nil {
		return err
	}
	rt.state.SetCDPEndpoint(info.WebSocketDebuggerURL)
	return persistAndShow(rt, map[string]any{
		"action":   "discovered",
		"endpoint": info.WebSocketDebuggerURL,
		"browser":  info.Browser,
		"message":  "connected to existing Chrome instance",
	})
}

func persistAndShow(rt *cliRuntime, data map[string]any) error {
	if err := rt.state.Persist(); err != nil {
		return fmt.Errorf("persisting context store: %w", err)
	}
	return printConnectResult(data)
}

func printConnectResult(data map[string]any) error {
	if flagFormat == "text" {
		if msg, ok := data["message"].(string); ok {
			fmt.Println(msg)
		} else {
			fmt.Printf("%v\n", data)
		}
		return nil
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
