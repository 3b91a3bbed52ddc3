package cmd

import (
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage saved browser authentication state",
}

var authLoginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Save the current session's cookies under a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runOp("auth.login", struct {
			Name string `json:"name"`
		}{Name: args[0]})
	},
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved authentication profiles",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runOp("auth.list", struct{}{})
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd, authListCmd)
}
