package motion

import (
	"net/http"

	"github.com/nasa-jpl/mercury/generichttp"
)

// Initializer is a type which may initialize an axis
type Initializer interface {
	// Initialize an axis, powering and resetting its controller
	Initialize(string) error
}

// HTTPInitialize adds routes for initialization to the route table
func HTTPInitialize(i Initializer, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/initialize"}] = Initialize(i)
}

// Initialize returns an HTTP handler func that calls Initialize for an axis
func Initialize(i Initializer) http.HandlerFunc {
	return axisAction(i.Initialize, "Initialized")
}
