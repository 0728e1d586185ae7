package motion

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/mercury/generichttp"
)

// Mover describes an interface with position-related methods for axes.
// Positions are strings carrying a unit, e.g. "2.5mm".
type Mover interface {
	// GetPos gets the current position of an axis
	GetPos(string) (string, error)

	// MoveAbs moves an axis to an absolute position
	MoveAbs(string, string) error

	// MoveRel moves an axis a relative amount
	MoveRel(string, string) error
}

// HTTPMove adds routes for the mover to the route table
func HTTPMove(iface Mover, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/pos"}] = GetPos(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/pos"}] = SetPos(iface)
}

// GetPos returns an HTTP handler func from a mover that gets the position of an axis
func GetPos(m Mover) http.HandlerFunc {
	return axisQuery(m.GetPos, "Position")
}

func popAxisRelative(r *http.Request) (string, bool, error) {
	axis := chi.URLParam(r, "axis")
	relative := r.URL.Query().Get("relative")
	if relative == "" {
		relative = "false"
	}
	b, err := strconv.ParseBool(relative)
	return axis, b, err
}

// SetPos returns an HTTP handler func from a mover that triggers an absolute or
// relative move on an axis based on the relative query parameter
func SetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, b, err := popAxisRelative(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s := generichttp.StrT{}
		if !generichttp.Decode(w, r, &s) {
			return
		}
		status := "Moved to:"
		if b {
			status = "Moved"
			err = m.MoveRel(axis, s.Str)
		} else {
			err = m.MoveAbs(axis, s.Str)
		}
		if err != nil {
			httpError(w, err)
			return
		}
		generichttp.Respond(w, status, s.Str)
	}
}
