package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rebelnerd/pwcli/internal/broker"
	"github.com/rebelnerd/pwcli/internal/contextstore"
	"github.com/rebelnerd/pwcli/internal/dispatch"
)

type authLoginInput struct {
	Name string `json:"name"`
}

// AuthLogin implements "auth login": it captures the active session's
// cookies into a named storage-state file under the profile's auth
// directory, for later --auth-file replay.
type AuthLogin struct{}

func (AuthLogin) Resolve(raw json.RawMessage, state *contextstore.State) (any, error) {
	var in authLoginInput
	if err := unmarshalStrict(raw, &in); err != nil {
		return nil, dispatch.Wrap(dispatch.CodeJSON, "decoding auth login input", err)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, dispatch.NewError(dispatch.CodeInvalidInput, "name is required")
	}
	return in, nil
}

func (AuthLogin) Execute(ctx dispatch.ExecCtx, resolved any) (dispatch.Outcome, error) {
	in := resolved.(authLoginInput)

	req := ctx.SessionTemplate
	req.PreferredURL = ctx.State.LastURL()
	handle, err := ctx.Broker.Session(ctx.Context, req)
	if err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeBrowserLaunch, "acquiring session", err)
	}
	defer handle.Close()

	dir := authDir(ctx.State)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeIO, "creating auth directory", err)
	}
	path := filepath.Join(dir, sanitizeAuthName(in.Name)+".json")
	if err := broker.SaveStorageState(handle, path); err != nil {
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeIO, "saving storage state", err)
	}

	return dispatch.Outcome{
		Inputs: in,
		Data:   map[string]any{"path": path},
	}, nil
}

// AuthList implements "auth list": enumerate saved storage-state files.
type AuthList struct{}

func (AuthList) Resolve(raw json.RawMessage, state *contextstore.State) (any, error) {
	return nil, nil
}

func (AuthList) Execute(ctx dispatch.ExecCtx, resolved any) (dispatch.Outcome, error) {
	dir := authDir(ctx.State)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return dispatch.Outcome{Data: map[string]any{"profiles": []string{}}}, nil
		}
		return dispatch.Outcome{}, dispatch.Wrap(dispatch.CodeIO, "listing auth directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)

	return dispatch.Outcome{Data: map[string]any{"profiles": names}}, nil
}

func authDir(state *contextstore.State) string {
	return state.Loaded().Paths.AuthDir
}

// sanitizeAuthName mirrors the on-disk sanitization the auth-file format uses
// for extension-exchanged cookie groups: "." becomes "_", a leading "." is
// stripped, and path separators can't smuggle a profile name outside the
// auth directory.
func sanitizeAuthName(name string) string {
	name = strings.TrimPrefix(name, ".")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	return name
}
