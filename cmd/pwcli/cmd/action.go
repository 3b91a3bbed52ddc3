package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rebelnerd/pwcli/internal/dispatch"
)

func runOp(op string, input any) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encoding %s input: %w", op, err)
	}
	req := dispatch.Request{SchemaVersion: dispatch.SchemaVersion, RequestID: uuid.NewString(), Op: op, Input: raw}
	resp := rt.dispatcher.Dispatch(rt.execCtx(), req)
	return emitResponse(resp, flagFormat)
}

var navigateCmd = &cobra.Command{
	Use:   "navigate [url]",
	Short: "Navigate the current session's page to a URL",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var url string
		if len(args) == 1 {
			url = args[0]
		}
		return runOp("navigate", struct {
			URL string `json:"url"`
		}{URL: url})
	},
}

var clickCmd = &cobra.Command{
	Use:   "click [selector]",
	Short: "Click the element matching a selector",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var selector string
		if len(args) == 1 {
			selector = args[0]
		}
		return runOp("click", struct {
			Selector string `json:"selector"`
		}{Selector: selector})
	},
}

var fillCmd = &cobra.Command{
	Use:   "fill [selector] [value]",
	Short: "Fill the element matching a selector with a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return runOp("fill", struct {
			Selector string `json:"selector"`
			Value    string `json:"value"`
		}{Selector: args[0], Value: args[1]})
	},
}

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Read the current page",
}

var pageTextCmd = &cobra.Command{
	Use:   "text [selector]",
	Short: "Read the visible text of a selector, or the whole page",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var selector string
		if len(args) == 1 {
			selector = args[0]
		}
		return runOp("page.text", struct {
			Selector string `json:"selector,omitempty"`
		}{Selector: selector})
	},
}

func init() {
	pageCmd.AddCommand(pageTextCmd)
}

var flagFullPage bool

var screenshotCmd = &cobra.Command{
	Use:   "screenshot [selector]",
	Short: "Capture a screenshot of a selector, or the viewport",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var selector string
		if len(args) == 1 {
			selector = args[0]
		}
		return runOp("screenshot", struct {
			Selector string `json:"selector,omitempty"`
			FullPage bool   `json:"fullPage,omitempty"`
		}{Selector: selector, FullPage: flagFullPage})
	},
}

func init() {
	screenshotCmd.Flags().BoolVar(&flagFullPage, "full-page", false, "capture the entire scrollable page")
}
