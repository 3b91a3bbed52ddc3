package relay

import "testing"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(nil, "")
}

func TestRouteBrowserGetVersionIsLocal(t *testing.T) {
	s := newTestServer(t)
	result, err := s.routeCDPCommand("Browser.getVersion", map[string]any{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if result["product"] != "Chrome/Extension-Bridge" {
		t.Errorf("unexpected product: %v", result["product"])
	}
}

func TestRouteTargetSetAutoAttachWithSessionForwards(t *testing.T) {
	s := newTestServer(t)
	_, err := s.routeCDPCommand("Target.setAutoAttach", map[string]any{}, "sess-1")
	if err == nil || err.Error() != "extension not connected" {
		t.Errorf("expected forward-to-extension failure with no extension, got %v", err)
	}
}

func TestRouteTargetSetAutoAttachWithoutSessionIsLocal(t *testing.T) {
	s := newTestServer(t)
	result, err := s.routeCDPCommand("Target.setAutoAttach", map[string]any{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty result, got %v", result)
	}
}

func TestRouteAttachToTargetNotFound(t *testing.T) {
	s := newTestServer(t)
	_, err := s.routeCDPCommand("Target.attachToTarget", map[string]any{"targetId": "missing"}, "")
	if err == nil {
		t.Error("expected not-found error")
	}
}

func TestRouteAttachToTargetFound(t *testing.T) {
	s := newTestServer(t)
	s.applyTargetEvent("Target.attachedToTarget", map[string]any{
		"sessionId":  "sess-1",
		"targetInfo": map[string]any{"targetId": "tgt-1"},
	})

	result, err := s.routeCDPCommand("Target.attachToTarget", map[string]any{"targetId": "tgt-1"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if result["sessionId"] != "sess-1" {
		t.Errorf("unexpected sessionId: %v", result["sessionId"])
	}
}

func TestApplyTargetEventDetach(t *testing.T) {
	s := newTestServer(t)
	s.applyTargetEvent("Target.attachedToTarget", map[string]any{
		"sessionId":  "sess-1",
		"targetInfo": map[string]any{"targetId": "tgt-1"},
	})
	s.applyTargetEvent("Target.detachedFromTarget", map[string]any{"sessionId": "sess-1"})

	if len(s.snapshotTargets()) != 0 {
		t.Error("expected target to be removed after detach")
	}
}

func TestApplyTargetEventInfoChanged(t *testing.T) {
	s := newTestServer(t)
	s.applyTargetEvent("Target.attachedToTarget", map[string]any{
		"sessionId":  "sess-1",
		"targetInfo": map[string]any{"targetId": "tgt-1", "url": "about:blank"},
	})
	s.applyTargetEvent("Target.targetInfoChanged", map[string]any{
		"targetInfo": map[string]any{"targetId": "tgt-1", "url": "https://example.com"},
	})

	targets := s.snapshotTargets()
	if len(targets) != 1 || targets[0].TargetInfo["url"] != "https://example.com" {
		t.Errorf("expected updated url, got %+v", targets)
	}
}

func TestGetTargetsMarksAttached(t *testing.T) {
	s := newTestServer(t)
	s.applyTargetEvent("Target.attachedToTarget", map[string]any{
		"sessionId":  "sess-1",
		"targetInfo": map[string]any{"targetId": "tgt-1"},
	})

	result, err := s.routeCDPCommand("Target.getTargets", map[string]any{}, "")
	if err != nil {
		t.Fatal(err)
	}
	infos := result["targetInfos"].([]map[string]any)
	if len(infos) != 1 || infos[0]["attached"] != true {
		t.Errorf("expected attached target info, got %+v", infos)
	}
}

func TestCompleteExtensionCallDeliversResult(t *testing.T) {
	s := newTestServer(t)
	ch := make(chan callResult, 1)
	s.state.pending[1] = pendingCall{result: ch}

	s.completeExtensionCall(1, map[string]any{"id": float64(1), "result": map[string]any{"ok": true}})

	res := <-ch
	if res.err != "" || res.value["ok"] != true {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCompleteExtensionCallDeliversError(t *testing.T) {
	s := newTestServer(t)
	ch := make(chan callResult, 1)
	s.state.pending[1] = pendingCall{result: ch}

	s.completeExtensionCall(1, map[string]any{"id": float64(1), "error": "boom"})

	res := <-ch
	if res.err != "boom" {
		t.Errorf("expected error boom, got %+v", res)
	}
}

func TestCompleteExtensionCallUnknownIDIsNoop(t *testing.T) {
	s := newTestServer(t)
	s.completeExtensionCall(99, map[string]any{"id": float64(99)})
}

func TestHandleExtensionMessageRejectsMissingMethod(t *testing.T) {
	s := newTestServer(t)
	if err := s.handleExtensionMessage([]byte(`{}`)); err == nil {
		t.Error("expected error for message with neither id nor method")
	}
}

func TestHandleExtensionMessageIgnoresUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	if err := s.handleExtensionMessage([]byte(`{"method":"somethingElse"}`)); err != nil {
		t.Errorf("expected no error for ignored method, got %v", err)
	}
}

func TestHandleClientMessageMissingID(t *testing.T) {
	s := newTestServer(t)
	if err := s.handleClientMessage("c1", []byte(`{"method":"Browser.getVersion"}`)); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestHandleClientMessageMissingMethod(t *testing.T) {
	s := newTestServer(t)
	if err := s.handleClientMessage("c1", []byte(`{"id":1}`)); err == nil {
		t.Error("expected error for missing method")
	}
}

func TestToUint64(t *testing.T) {
	if n, ok := toUint64(float64(42)); !ok || n != 42 {
		t.Errorf("expected 42, got %d ok=%v", n, ok)
	}
	if _, ok := toUint64("not a number"); ok {
		t.Error("expected false for non-numeric string")
	}
	if _, ok := toUint64(nil); ok {
		t.Error("expected false for nil")
	}
}
