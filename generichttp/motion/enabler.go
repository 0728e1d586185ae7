package motion

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/mercury/generichttp"
)

// Enabler describes an interface with enable/disable methods for axes
type Enabler interface {
	// Enable enables an axis
	Enable(string) error

	// Disable disables an axis
	Disable(string) error

	// GetEnabled gets if an axis is enabled
	GetEnabled(string) (bool, error)
}

// HTTPEnable adds routes for the enabler to the route table
func HTTPEnable(iface Enabler, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/enabled"}] = GetEnabled(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/enabled"}] = SetEnabled(iface)
}

// SetEnabled returns an HTTP handler func from an enabler that enables or disables the axis
func SetEnabled(e Enabler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		boolT := generichttp.BoolT{}
		if !generichttp.Decode(w, r, &boolT) {
			return
		}
		var err error
		status := "Enabled"
		if boolT.Bool {
			err = e.Enable(axis)
		} else {
			status = "Disabled"
			err = e.Disable(axis)
		}
		if err != nil {
			httpError(w, err)
			return
		}
		generichttp.Respond(w, status, "")
	}
}

// GetEnabled returns an HTTP handler func from an enabler that returns if the axis is enabled
func GetEnabled(e Enabler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		enabled, err := e.GetEnabled(axis)
		if err != nil {
			httpError(w, err)
			return
		}
		generichttp.EncodeAndRespond(w, generichttp.BoolT{Bool: enabled})
	}
}
