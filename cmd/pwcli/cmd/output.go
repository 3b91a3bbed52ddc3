package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rebelnerd/pwcli/internal/dispatch"
)

// cliError wraps a response's error payload so main can map it to an exit
// code without re-parsing the printed envelope.
type cliError struct {
	code    dispatch.Code
	message string
}

func (e *cliError) Error() string { return e.message }

// ExitCodeFor maps a returned error to a process exit code. The taxonomy's
// exact numeric values are not a compatibility surface; only zero-vs-nonzero
// and "errors of the same class exit the same way" are guaranteed.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	ce, ok := err.(*cliError)
	if !ok {
		return 1
	}
	switch ce.code {
	case dispatch.CodeInvalidInput:
		return 2
	case dispatch.CodeSelectorNotFound:
		return 3
	case dispatch.CodeNavigationFailed:
		return 4
	case dispatch.CodeTimeout:
		return 5
	case dispatch.CodeBrowserLaunch:
		return 6
	case dispatch.CodeContext:
		return 7
	case dispatch.CodeIO:
		return 8
	case dispatch.CodeJSON:
		return 9
	default:
		return 1
	}
}

// emitResponse prints resp per --format and, for a failed response, returns
// a cliError so the caller's exit code reflects the error taxonomy.
func emitResponse(resp dispatch.Response, format string) error {
	if format == "text" {
		printText(resp)
	} else {
		raw, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling response: %w", err)
		}
		fmt.Println(string(raw))
	}

	if !resp.OK && resp.Error != nil {
		return &cliError{code: resp.Error.Code, message: resp.Error.Message}
	}
	return nil
}

func printText(resp dispatch.Response) {
	if !resp.OK && resp.Error != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", resp.Error.Code, resp.Error.Message)
		return
	}
	if resp.Data != nil {
		fmt.Printf("%v\n", resp.Data)
	}
	for _, a := range resp.Artifacts {
		fmt.Printf("%s: %s\n", a.Kind, a.Path)
	}
}
