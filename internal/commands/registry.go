package commands

import "github.com/rebelnerd/pwcli/internal/dispatch"

// Registry returns every built-in operation keyed by its dispatcher op name.
func Registry() dispatch.Registry {
	return dispatch.Registry{
		"navigate":   Navigate{},
		"click":      Click{},
		"fill":       Fill{},
		"page.text":  PageText{},
		"screenshot": Screenshot{},
		"auth.login": AuthLogin{},
		"auth.list":  AuthList{},
	}
}
