// Package motion provides an HTTP interface to motion controllers
package motion

/*
A controller may implement any number of the interfaces in this package.
NewHTTPStages checks which ones and binds their routes.
*/
import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/mercury/generichttp"
)

// notFounder is implemented by errors about an axis that does not exist
type notFounder interface {
	NotFound() bool
}

// httpError replies with the error text, 404 if the axis does not exist and
// 500 otherwise
func httpError(w http.ResponseWriter, err error) {
	var nf notFounder
	if errors.As(err, &nf) && nf.NotFound() {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// Lister lists its axes
type Lister interface {
	// Axes returns the names of the axes
	Axes() []string
}

// HTTPList adds the axis listing route to the table
func HTTPList(l Lister, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axes"}] = func(w http.ResponseWriter, r *http.Request) {
		generichttp.EncodeAndRespond(w, l.Axes())
	}
}

// axisAction returns a handler that calls fcn on the axis and replies with status
func axisAction(fcn func(string) error, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		if err := fcn(axis); err != nil {
			httpError(w, err)
			return
		}
		generichttp.Respond(w, status, "")
	}
}

// axisQuery returns a handler that replies with status and what fcn returns for the axis
func axisQuery(fcn func(string) (string, error), status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		s, err := fcn(axis)
		if err != nil {
			httpError(w, err)
			return
		}
		generichttp.Respond(w, status, s)
	}
}

// Controller is used for the HTTP interface, which will check if the concrete
// type satisfies the other interfaces in this package and inject their routes
// automatically
type Controller interface {
	// Mover - all Controllers must be Movers
	Mover
}

// HTTPStages wraps a set of stages with HTTP
type HTTPStages struct {
	Controller

	RouteTable generichttp.RouteTable
}

// NewHTTPStages returns a new HTTP wrapper with the route table pre-configured
func NewHTTPStages(c Controller) HTTPStages {
	w := HTTPStages{Controller: c}
	rt := generichttp.RouteTable{}
	HTTPMove(c, rt)
	if lister, ok := interface{}(c).(Lister); ok {
		HTTPList(lister, rt)
	}
	if initializer, ok := interface{}(c).(Initializer); ok {
		HTTPInitialize(initializer, rt)
	}
	if stopper, ok := interface{}(c).(Stopper); ok {
		HTTPStop(stopper, rt)
	}
	if homer, ok := interface{}(c).(Homer); ok {
		HTTPHome(homer, rt)
	}
	if sq, ok := interface{}(c).(StatusQueryer); ok {
		HTTPStatus(sq, rt)
	}
	if ef, ok := interface{}(c).(EdgeFinder); ok {
		HTTPEdge(ef, rt)
	}
	if enabler, ok := interface{}(c).(Enabler); ok {
		HTTPEnable(enabler, rt)
	}
	if speeder, ok := interface{}(c).(Speeder); ok {
		HTTPSpeed(speeder, rt)
	}
	w.RouteTable = rt
	return w
}

// RT satisfies the HTTPer interface
func (h HTTPStages) RT() generichttp.RouteTable {
	return h.RouteTable
}
