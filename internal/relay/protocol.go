package relay

import (
	"encoding/json"
	"fmt"
)

// handleExtensionMessage dispatches one line from the extension socket: a
// response to a pending forwarded command (keyed by numeric id), a log
// passthrough, or a forwardCDPEvent to re-emit (and, for target lifecycle
// events, fold into the connected-targets map) to every client.
func (s *Server) handleExtensionMessage(raw []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("parsing extension message: %w", err)
	}

	if idVal, ok := msg["id"]; ok {
		id, ok := toUint64(idVal)
		if !ok {
			return fmt.Errorf("extension response id is not a number")
		}
		s.completeExtensionCall(id, msg)
		return nil
	}

	method, _ := msg["method"].(string)
	if method == "" {
		return fmt.Errorf("extension event missing method")
	}

	if method == "log" {
		return nil
	}
	if method != "forwardCDPEvent" {
		s.log.Printf("ignoring unexpected extension event %q", method)
		return nil
	}

	params, _ := msg["params"].(map[string]any)
	if params == nil {
		return fmt.Errorf("forwardCDPEvent missing params")
	}
	eventMethod, _ := params["method"].(string)
	if eventMethod == "" {
		return fmt.Errorf("forwardCDPEvent missing method")
	}
	sessionID, _ := params["sessionId"].(string)

	s.applyTargetEvent(eventMethod, params)

	outbound := map[string]any{"method": eventMethod, "params": params["params"]}
	if sessionID != "" {
		outbound["sessionId"] = sessionID
	}
	s.sendToClients("", outbound)
	return nil
}

func (s *Server) completeExtensionCall(id uint64, msg map[string]any) {
	s.state.mu.Lock()
	pending, ok := s.state.pending[id]
	if ok {
		delete(s.state.pending, id)
	}
	s.state.mu.Unlock()

	if !ok {
		s.log.Printf("received response with unknown id %d from extension", id)
		return
	}

	if errVal, hasErr := msg["error"]; hasErr {
		errStr := "Unknown error"
		if s, ok := errVal.(string); ok {
			errStr = s
		}
		pending.result <- callResult{err: errStr}
		return
	}
	result, _ := msg["result"].(map[string]any)
	pending.result <- callResult{value: result}
}

// applyTargetEvent folds extension-originated target lifecycle events into
// the connected-targets map that route-synthesized responses read from.
func (s *Server) applyTargetEvent(eventMethod string, params map[string]any) {
	switch eventMethod {
	case "Target.attachedToTarget":
		sessionID, _ := params["sessionId"].(string)
		targetInfo, _ := params["targetInfo"].(map[string]any)
		if sessionID == "" || targetInfo == nil {
			return
		}
		targetID, _ := targetInfo["targetId"].(string)
		if targetID == "" {
			return
		}
		s.state.mu.Lock()
		s.state.connectedTargets[sessionID] = connectedTarget{SessionID: sessionID, TargetID: targetID, TargetInfo: targetInfo}
		s.state.mu.Unlock()

	case "Target.detachedFromTarget":
		sessionID, _ := params["sessionId"].(string)
		if sessionID == "" {
			return
		}
		s.state.mu.Lock()
		delete(s.state.connectedTargets, sessionID)
		s.state.mu.Unlock()

	case "Target.targetInfoChanged":
		targetInfo, _ := params["targetInfo"].(map[string]any)
		if targetInfo == nil {
			return
		}
		targetID, _ := targetInfo["targetId"].(string)
		if targetID == "" {
			return
		}
		s.state.mu.Lock()
		for sid, t := range s.state.connectedTargets {
			if t.TargetID == targetID {
				t.TargetInfo = targetInfo
				s.state.connectedTargets[sid] = t
			}
		}
		s.state.mu.Unlock()
	}
}

// handleClientMessage parses one client command, routes it (locally
// synthesized or forwarded to the extension), and replies to that one
// client, followed by any extra sync events the route produced.
func (s *Server) handleClientMessage(clientID string, raw []byte) error {
	var cmd map[string]any
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("parsing client message: %w", err)
	}

	idVal, ok := cmd["id"]
	if !ok {
		return fmt.Errorf("client command missing id")
	}
	method, _ := cmd["method"].(string)
	if method == "" {
		return fmt.Errorf("client command missing method")
	}
	params, _ := cmd["params"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}
	sessionID, _ := cmd["sessionId"].(string)

	var extraEvents []map[string]any
	result, err := s.routeCDPCommand(method, params, sessionID)

	response := map[string]any{"id": idVal}
	if sessionID != "" {
		response["sessionId"] = sessionID
	}
	if err != nil {
		response["error"] = map[string]any{"message": err.Error()}
	} else {
		response["result"] = result

		if method == "Target.setAutoAttach" && sessionID == "" {
			for _, t := range s.snapshotTargets() {
				extraEvents = append(extraEvents, map[string]any{
					"method": "Target.attachedToTarget",
					"params": map[string]any{
						"sessionId":          t.SessionID,
						"targetInfo":         t.TargetInfo,
						"waitingForDebugger": false,
					},
				})
			}
		}
		if method == "Target.setDiscoverTargets" {
			if discover, _ := params["discover"].(bool); discover {
				for _, t := range s.snapshotTargets() {
					extraEvents = append(extraEvents, map[string]any{
						"method": "Target.targetCreated",
						"params": map[string]any{"targetInfo": t.TargetInfo},
					})
				}
			}
		}
	}

	s.sendToClients(clientID, response)
	for _, event := range extraEvents {
		s.sendToClients(clientID, event)
	}
	return nil
}

// routeCDPCommand answers a small set of methods locally from the
// connected-targets snapshot, and forwards everything else to the extension.
func (s *Server) routeCDPCommand(method string, params map[string]any, sessionID string) (map[string]any, error) {
	switch method {
	case "Browser.getVersion":
		return map[string]any{
			"protocolVersion": "1.3",
			"product":         "Chrome/Extension-Bridge",
			"revision":        "1.0.0",
			"userAgent":       "CDP-Bridge-Server/1.0.0",
			"jsVersion":       "V8",
		}, nil

	case "Browser.setDownloadBehavior":
		return map[string]any{}, nil

	case "Target.setAutoAttach":
		if sessionID == "" {
			return map[string]any{}, nil
		}

	case "Target.setDiscoverTargets":
		return map[string]any{}, nil

	case "Target.attachToTarget":
		targetID, _ := params["targetId"].(string)
		if targetID == "" {
			return nil, fmt.Errorf("targetId is required for Target.attachToTarget")
		}
		for _, t := range s.snapshotTargets() {
			if t.TargetID == targetID {
				return map[string]any{"sessionId": t.SessionID}, nil
			}
		}
		return nil, fmt.Errorf("target not found: %s", targetID)

	case "Target.getTargetInfo":
		if targetID, _ := params["targetId"].(string); targetID != "" {
			for _, t := range s.snapshotTargets() {
				if t.TargetID == targetID {
					return map[string]any{"targetInfo": t.TargetInfo}, nil
				}
			}
		}
		if sessionID != "" {
			for _, t := range s.snapshotTargets() {
				if t.SessionID == sessionID {
					return map[string]any{"targetInfo": t.TargetInfo}, nil
				}
			}
		}
		targets := s.snapshotTargets()
		if len(targets) > 0 {
			return map[string]any{"targetInfo": targets[0].TargetInfo}, nil
		}
		return map[string]any{"targetInfo": nil}, nil

	case "Target.getTargets":
		targets := s.snapshotTargets()
		infos := make([]map[string]any, 0, len(targets))
		for _, t := range targets {
			info := make(map[string]any, len(t.TargetInfo)+1)
			for k, v := range t.TargetInfo {
				info[k] = v
			}
			info["attached"] = true
			infos = append(infos, info)
		}
		return map[string]any{"targetInfos": infos}, nil

	case "Target.createTarget", "Target.closeTarget":
		return s.sendToExtension(method, params, "")
	}

	return s.sendToExtension(method, params, sessionID)
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		return uint64(n), true
	case string:
		return parseUint64(n)
	default:
		return 0, false
	}
}
