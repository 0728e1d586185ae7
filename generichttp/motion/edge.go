package motion

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/mercury/generichttp"
)

// EdgeFinder can drive an axis to either end of its travel
type EdgeFinder interface {
	// FindEdge moves to edge 0 or 1 and returns the position there
	FindEdge(string, int) (string, error)
}

// HTTPEdge adds the edge finding route to the table
func HTTPEdge(e EdgeFinder, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/edge"}] = FindEdge(e)
}

// FindEdge returns an HTTP handler func that takes {"int": edge} and replies
// with the position reached
func FindEdge(e EdgeFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		intT := generichttp.IntT{}
		if !generichttp.Decode(w, r, &intT) {
			return
		}
		if intT.Int != 0 && intT.Int != 1 {
			http.Error(w, "edge must be 0 or 1, got "+strconv.Itoa(intT.Int), http.StatusBadRequest)
			return
		}
		pos, err := e.FindEdge(axis, intT.Int)
		if err != nil {
			httpError(w, err)
			return
		}
		generichttp.Respond(w, "Edge", pos)
	}
}
