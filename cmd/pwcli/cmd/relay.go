package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rebelnerd/pwcli/internal/logging"
	"github.com/rebelnerd/pwcli/internal/relay"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the CDP relay bridging a browser extension to raw CDP clients",
}

var flagRelayAddr string
var flagRelayToken string

var relayServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay's WebSocket listener and block until shut down",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		addr := flagRelayAddr
		if addr == "" {
			addr = rt.settings.Relay.BindAddress
		}
		if addr == "" {
			return fmt.Errorf("no relay bind address configured")
		}
		token := flagRelayToken
		if token == "" {
			token = rt.settings.Relay.Token
		}
		if token == "" {
			logging.New("relay").Printf("warning: no relay token configured, any extension can claim this connection")
		}
		logger := logging.New("relay")
		server := relay.New(logger, token)
		return server.ListenAndServe(rootCmdContext(), addr)
	},
}

func init() {
	relayServeCmd.Flags().StringVar(&flagRelayAddr, "addr", "", "address to listen on, overriding workspace settings")
	relayServeCmd.Flags().StringVar(&flagRelayToken, "token", "", "token the extension must present in its hello message, overriding workspace settings")
	relayCmd.AddCommand(relayServeCmd)
}
