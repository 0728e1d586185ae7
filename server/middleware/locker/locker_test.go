package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/mercury/generichttp"
)

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func TestLockBouncesProtectedRoutes(t *testing.T) {
	rt := table{}
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/stop"}] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	l := New()
	Inject(rt, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	generichttp.RouteTable(rt).Bind(r)

	do := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if code := do(http.MethodPost, "/axis/x/stop", ""); code != http.StatusOK {
		t.Fatalf("unlocked stop gave %d", code)
	}
	if code := do(http.MethodPost, "/lock", `{"bool":true}`); code != http.StatusOK {
		t.Fatalf("locking gave %d", code)
	}
	if !l.Locked() {
		t.Fatal("POST /lock did not lock")
	}
	if code := do(http.MethodPost, "/axis/x/stop", ""); code != http.StatusLocked {
		t.Errorf("locked stop gave %d, want 423", code)
	}
	if code := do(http.MethodGet, "/lock", ""); code != http.StatusOK {
		t.Errorf("GET /lock while locked gave %d", code)
	}
	if code := do(http.MethodPost, "/lock", `{"bool":false}`); code != http.StatusOK {
		t.Errorf("unlocking gave %d", code)
	}
	if code := do(http.MethodPost, "/axis/x/stop", ""); code != http.StatusOK {
		t.Errorf("stop after unlock gave %d", code)
	}
	if code := do(http.MethodPost, "/lock", `nope`); code != http.StatusBadRequest {
		t.Errorf("bad body gave %d", code)
	}
}

func TestLockPathMatching(t *testing.T) {
	l := New()
	l.Lock()
	h := l.Check(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for path, want := range map[string]int{
		"/stages/lock":       http.StatusOK,
		"/axis/clocks/pos":   http.StatusLocked,
		"/axis/x/initialize": http.StatusLocked,
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Errorf("%s gave %d, want %d", path, w.Code, want)
		}
	}
}
