package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/nasa-jpl/mercury/generichttp"
	"github.com/nasa-jpl/mercury/generichttp/motion"
	"github.com/nasa-jpl/mercury/mercury"
	"github.com/nasa-jpl/mercury/server/middleware/locker"
)

// Endpoint is where the stage routes are mounted
const Endpoint = "stages"

// BuildMux returns a router serving stages under /stages, with a lock, and
// the route graph at /endpoints
func BuildMux(stages *mercury.Stages) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	httper := motion.NewHTTPStages(stages)
	hndlS := generichttp.SubMuxSanitize(Endpoint)

	lock := locker.New()
	locker.Inject(httper, lock)

	// add the endpoints to the graph after the lock, so it is listed
	supergraph[hndlS] = httper.RT().Endpoints()

	r := chi.NewRouter()
	r.Use(lock.Check)
	httper.RT().Bind(r)
	root.Mount(hndlS, r)

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root
}
