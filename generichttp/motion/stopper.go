package motion

import (
	"net/http"

	"github.com/nasa-jpl/mercury/generichttp"
)

// Stopper describes an interface with stop-related methods for axes
type Stopper interface {
	// Stop aborts motion of the axis
	Stop(string) error
}

// HTTPStop adds routes for the stopper to the route table
func HTTPStop(iface Stopper, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/stop"}] = Stop(iface)
}

// Stop returns an HTTP handler func from a stopper that stops an axis
func Stop(s Stopper) http.HandlerFunc {
	return axisAction(s.Stop, "Stopped")
}

// Homer describes an axis with a settable zero
type Homer interface {
	// SetHome makes the current position zero
	SetHome(string) error

	// GoHome moves to zero
	GoHome(string) error
}

// HTTPHome adds routes for the homer to the route table
func HTTPHome(h Homer, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/sethome"}] = axisAction(h.SetHome, "Set home")
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/gohome"}] = axisAction(h.GoHome, "Go home")
}

// StatusQueryer reads the status of an axis
type StatusQueryer interface {
	GetStatus(string) (string, error)
}

// HTTPStatus adds the status route to the table
func HTTPStatus(s StatusQueryer, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/status"}] = axisQuery(s.GetStatus, "Status")
}
