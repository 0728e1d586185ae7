package motion_test

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/mercury/generichttp"
	"github.com/nasa-jpl/mercury/generichttp/motion"
	"github.com/nasa-jpl/mercury/mercury"
	"github.com/nasa-jpl/mercury/units"
)

func newServer(t *testing.T) (*httptest.Server, *mercury.Simulator) {
	t.Helper()
	sim := mercury.NewSimulator(1)
	sim.Travel = 100
	ctl := mercury.NewController(sim, log.New(ioutil.Discard, "", 0))
	ss := mercury.NewStages()
	ss.Add(mercury.NewStage("x", mercury.StageConfig{Address: 1, Kind: units.Linear, StepSize: 18, Unit: "mm"}, mercury.LogicUnchanged, ctl))
	h := motion.NewHTTPStages(ss)
	r := chi.NewRouter()
	h.RT().Bind(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sim
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, generichttp.Reply) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var rep generichttp.Reply
	if resp.StatusCode == http.StatusOK && resp.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode, rep
}

func TestRoutesBound(t *testing.T) {
	h := motion.NewHTTPStages(mercury.NewStages())
	want := []string{
		"GET /axes",
		"POST /axis/{axis}/edge",
		"GET /axis/{axis}/enabled",
		"POST /axis/{axis}/enabled",
		"POST /axis/{axis}/gohome",
		"POST /axis/{axis}/initialize",
		"GET /axis/{axis}/pos",
		"POST /axis/{axis}/pos",
		"POST /axis/{axis}/sethome",
		"GET /axis/{axis}/status",
		"POST /axis/{axis}/stop",
		"GET /axis/{axis}/velocity",
		"POST /axis/{axis}/velocity",
	}
	got := h.RT().Endpoints()
	if len(got) != len(want) {
		t.Fatalf("endpoints %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("endpoint %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMoveAndRead(t *testing.T) {
	srv, sim := newServer(t)
	if code, rep := call(t, srv, http.MethodPost, "/axis/x/initialize", ""); code != http.StatusOK || rep.Status != "Initialized" {
		t.Fatalf("initialize gave %d %+v", code, rep)
	}
	code, rep := call(t, srv, http.MethodPost, "/axis/x/pos?relative=true", `{"str":"1mm"}`)
	if code != http.StatusOK || rep.Status != "Moved" || rep.Payload != "1mm" {
		t.Fatalf("relative move gave %d %+v", code, rep)
	}
	code, rep = call(t, srv, http.MethodGet, "/axis/x/pos", "")
	if code != http.StatusOK || rep.Status != "Position" || rep.Payload != "0.990" {
		t.Errorf("position gave %d %+v", code, rep)
	}
	code, rep = call(t, srv, http.MethodPost, "/axis/x/pos", `{"str":"36um"}`)
	if code != http.StatusOK || rep.Status != "Moved to:" {
		t.Errorf("absolute move gave %d %+v", code, rep)
	}
	if sim.Steps(1) != 2 {
		t.Errorf("steps %d, want 2", sim.Steps(1))
	}
	// bad amounts are logged by the driver, not reported
	if code, _ := call(t, srv, http.MethodPost, "/axis/x/pos", `{"str":"banana"}`); code != http.StatusOK {
		t.Errorf("bad amount gave %d", code)
	}
	if sim.Steps(1) != 2 {
		t.Errorf("bad amount moved the stage to %d", sim.Steps(1))
	}
}

func TestControlRoutes(t *testing.T) {
	srv, sim := newServer(t)
	call(t, srv, http.MethodPost, "/axis/x/initialize", "")
	for path, status := range map[string]string{
		"/axis/x/stop":    "Stopped",
		"/axis/x/sethome": "Set home",
		"/axis/x/gohome":  "Go home",
	} {
		code, rep := call(t, srv, http.MethodPost, path, "")
		if code != http.StatusOK || rep.Status != status {
			t.Errorf("%s gave %d %+v", path, code, rep)
		}
	}
	code, rep := call(t, srv, http.MethodGet, "/axis/x/status", "")
	if code != http.StatusOK || rep.Status != "Status" || !strings.HasPrefix(rep.Payload, "S:") {
		t.Errorf("status gave %d %+v", code, rep)
	}
	code, rep = call(t, srv, http.MethodPost, "/axis/x/edge", `{"int":1}`)
	if code != http.StatusOK || rep.Status != "Edge" || rep.Payload != "1.800" {
		t.Errorf("edge gave %d %+v", code, rep)
	}
	if sim.Steps(1) != 100 {
		t.Errorf("steps %d after edge", sim.Steps(1))
	}
	if code, _ := call(t, srv, http.MethodPost, "/axis/x/edge", `{"int":4}`); code != http.StatusBadRequest {
		t.Errorf("edge 4 gave %d", code)
	}
}

func TestVelocityAndEnable(t *testing.T) {
	srv, sim := newServer(t)
	if code, _ := call(t, srv, http.MethodGet, "/axis/x/velocity", ""); code != http.StatusInternalServerError {
		t.Errorf("velocity before any was set gave %d", code)
	}
	if code, _ := call(t, srv, http.MethodPost, "/axis/x/velocity", `{"int":5000}`); code != http.StatusOK {
		t.Errorf("set velocity gave %d", code)
	}
	if sim.Velocity(1) != 5000 {
		t.Errorf("simulated velocity %d", sim.Velocity(1))
	}
	if code, _ := call(t, srv, http.MethodPost, "/axis/x/velocity", `{"int":-1}`); code != http.StatusBadRequest {
		t.Errorf("negative velocity gave %d", code)
	}
	if code, rep := call(t, srv, http.MethodPost, "/axis/x/enabled", `{"bool":false}`); code != http.StatusOK || rep.Status != "Disabled" {
		t.Errorf("disable gave %d %+v", code, rep)
	}
}

func TestErrors(t *testing.T) {
	srv, _ := newServer(t)
	if code, _ := call(t, srv, http.MethodGet, "/axis/nope/pos", ""); code != http.StatusNotFound {
		t.Errorf("unknown axis gave %d, want 404", code)
	}
	if code, _ := call(t, srv, http.MethodPost, "/axis/x/pos?relative=maybe", `{"str":"1"}`); code != http.StatusBadRequest {
		t.Errorf("bad relative gave %d", code)
	}
	if code, _ := call(t, srv, http.MethodPost, "/axis/x/pos", `not json`); code != http.StatusBadRequest {
		t.Errorf("bad body gave %d", code)
	}
}

func TestQueryFailureIs500(t *testing.T) {
	sim := mercury.NewSimulator(1)
	ctl := mercury.NewController(sim, log.New(ioutil.Discard, "", 0))
	ss := mercury.NewStages()
	ss.Add(mercury.NewStage("ghost", mercury.StageConfig{Address: 2, Kind: units.Linear, StepSize: 1, Unit: "um"}, mercury.LogicUnchanged, ctl))
	r := chi.NewRouter()
	motion.NewHTTPStages(ss).RT().Bind(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/axis/ghost/pos", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("timeout gave %d, want 500", w.Code)
	}
}
