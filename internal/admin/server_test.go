package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgekit/uplink/internal/testutil/testlog"
	"github.com/edgekit/uplink/internal/uplink"
)

type fakeController struct {
	status  uplink.Status
	actions []uplink.Action
	err     error
}

func (f *fakeController) Status() uplink.Status { return f.status }

func (f *fakeController) Do(a uplink.Action) error {
	switch a {
	case uplink.ActionPause, uplink.ActionRetry, uplink.ActionReconnect, uplink.ActionReload:
	default:
		return uplink.ErrUnknownAction
	}
	if f.err != nil {
		return f.err
	}
	f.actions = append(f.actions, a)
	return nil
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestAdminHealth(t *testing.T) {
	testlog.Start(t)
	s := New("node-1", &fakeController{}, nil)
	w := doRequest(t, s, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["node"] != "node-1" {
		t.Fatalf("body: %v", body)
	}
}

func TestAdminStatus(t *testing.T) {
	testlog.Start(t)
	ctrl := &fakeController{status: uplink.Status{
		ClientID:  "dev-1",
		Connected: true,
	}}
	s := New("node-1", ctrl, nil)
	w := doRequest(t, s, http.MethodGet, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var got uplink.Status
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ClientID != "dev-1" || !got.Connected {
		t.Fatalf("status body: %+v", got)
	}
}

func TestAdminActions(t *testing.T) {
	testlog.Start(t)
	ctrl := &fakeController{}
	s := New("node-1", ctrl, nil)

	w := doRequest(t, s, http.MethodPost, "/actions/pause")
	if w.Code != http.StatusOK {
		t.Fatalf("pause status=%d body=%s", w.Code, w.Body.String())
	}
	if len(ctrl.actions) != 1 || ctrl.actions[0] != uplink.ActionPause {
		t.Fatalf("actions: %v", ctrl.actions)
	}

	w = doRequest(t, s, http.MethodPost, "/actions/bogus")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown action status=%d", w.Code)
	}

	ctrl.err = uplink.ErrControlBusy
	w = doRequest(t, s, http.MethodPost, "/actions/retry")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("busy status=%d", w.Code)
	}
}

func TestAdminMetricsExposed(t *testing.T) {
	testlog.Start(t)
	s := New("node-1", &fakeController{}, nil)
	w := doRequest(t, s, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("empty metrics exposition")
	}
}
