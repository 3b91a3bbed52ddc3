package cmd

import (
	"fmt"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/rebelnerd/pwcli/internal/broker"
	"github.com/rebelnerd/pwcli/internal/commands"
	"github.com/rebelnerd/pwcli/internal/contextstore"
	"github.com/rebelnerd/pwcli/internal/daemon"
	"github.com/rebelnerd/pwcli/internal/descriptor"
	"github.com/rebelnerd/pwcli/internal/dispatch"
	"github.com/rebelnerd/pwcli/internal/logging"
	"github.com/rebelnerd/pwcli/internal/settings"
	"github.com/rebelnerd/pwcli/internal/workspace"
)

// cliRuntime bundles everything a subcommand needs: the resolved workspace
// scope, its persistent context state, a broker, an optional daemon client,
// and a dispatcher over the built-in command registry.
type cliRuntime struct {
	scope      workspace.Scope
	settings   settings.Settings
	state      *contextstore.State
	broker     *broker.Broker
	daemon     *daemon.Client
	dispatcher *dispatch.Dispatcher
}

func buildRuntime() (*cliRuntime, error) {
	scope, err := workspace.Resolve(flagWorkspace, flagProfile, flagNoProject)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	settingsRoot := scope.Root()
	sett, err := settings.Load(settingsRoot)
	if err != nil {
		return nil, fmt.Errorf("loading workspace settings: %w", err)
	}

	state, err := contextstore.NewState(scope, "", false, false, false)
	if err != nil {
		return nil, fmt.Errorf("loading context store: %w", err)
	}

	logger := logging.New("pwcli")

	driverHash := "unmanaged"
	if bin, found := launcher.LookPath(); found {
		if h, err := descriptor.DriverHash(bin); err == nil {
			driverHash = h
		}
	}

	br := broker.New(logger, driverHash)

	var daemonClient *daemon.Client
	if daemonEnabled() {
		daemonClient = daemon.NewClient(scope.StateRoot())
	}

	disp := dispatch.NewDispatcher(commands.Registry())
	if tracer, err := dispatch.NewTracer(scope.StateRoot()+"/traces", scope.Profile()); err == nil {
		disp = dispatch.NewDispatcherWithTrace(commands.Registry(), tracer)
	}

	return &cliRuntime{
		scope:      scope,
		settings:   sett,
		state:      state,
		broker:     br,
		daemon:     daemonClient,
		dispatcher: disp,
	}, nil
}

// sessionTemplate builds the broker.Request shared by every action command,
// from the root's persistent flags and the resolved runtime.
func (rt *cliRuntime) sessionTemplate() broker.Request {
	headless := rt.state.Headless()
	if flagHeadless {
		headless = true
	}
	if flagHeadful {
		headless = false
	}

	req := broker.Request{
		Browser:              workspace.BrowserChromium,
		Headless:             headless,
		CDPEndpoint:          flagCDPEndpoint,
		StorageStatePath:     flagStorageState,
		AuthFiles:            flagAuthFiles,
		ProtectedURLPatterns: rt.state.ProtectedURLs(),
		SessionKey:           rt.scope.SessionKey(workspace.BrowserChromium, headless),
		DescriptorPath:       rt.state.SessionDescriptorPath(),
		DaemonEnabled:        daemonEnabled(),
	}
	if rt.daemon != nil {
		req.DaemonClient = rt.daemon
	}
	if req.CDPEndpoint == "" {
		req.CDPEndpoint = rt.state.CDPEndpoint()
	}
	return req
}

func (rt *cliRuntime) execCtx() dispatch.ExecCtx {
	return dispatch.ExecCtx{
		Context:         rootCmdContext(),
		State:           rt.state,
		Broker:          rt.broker,
		Format:          flagFormat,
		ArtifactsDir:    rt.scope.StateRoot() + "/artifacts",
		LastURL:         rt.state.LastURL(),
		SessionTemplate: rt.sessionTemplate(),
	}
}
