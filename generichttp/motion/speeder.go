package motion

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/mercury/generichttp"
)

// Speeder describes an interface with velocity-related methods for axes.
// Velocities are in steps per second.
type Speeder interface {
	// SetVelocity sets the velocity setpoint on the axis
	SetVelocity(string, int) error

	// GetVelocity gets the velocity setpoint on the axis
	GetVelocity(string) (int, error)
}

// HTTPSpeed adds routes for the speeder to the route table
func HTTPSpeed(iface Speeder, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/velocity"}] = SetVelocity(iface)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/velocity"}] = GetVelocity(iface)
}

// SetVelocity returns an HTTP handler func which sets the velocity setpoint on an axis
func SetVelocity(s Speeder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		intT := generichttp.IntT{}
		if !generichttp.Decode(w, r, &intT) {
			return
		}
		if intT.Int <= 0 {
			http.Error(w, "velocity must be positive", http.StatusBadRequest)
			return
		}
		if err := s.SetVelocity(axis, intT.Int); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetVelocity returns an HTTP handler func which gets the velocity setpoint on an axis
func GetVelocity(s Speeder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		vel, err := s.GetVelocity(axis)
		if err != nil {
			httpError(w, err)
			return
		}
		generichttp.EncodeAndRespond(w, generichttp.IntT{Int: vel})
	}
}
