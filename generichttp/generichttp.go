// Package generichttp defines the route table, request bodies, and replies
// shared by the HTTP wrappers of devices
package generichttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi"
)

// MethodPath is an HTTP method and a chi route pattern
type MethodPath struct {
	Method string
	Path   string
}

// RouteTable maps method-paths to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints returns the routes in the table as "METHOD /path", sorted by path
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k.Method+" "+k.Path)
	}
	sort.Slice(routes, func(i, j int) bool {
		pi := routes[i][strings.IndexByte(routes[i], ' ')+1:]
		pj := routes[j][strings.IndexByte(routes[j], ' ')+1:]
		if pi == pj {
			return routes[i] < routes[j]
		}
		return pi < pj
	})
	return routes
}

// Bind adds every route in the table to r
func (rt RouteTable) Bind(r chi.Router) {
	for k, v := range rt {
		r.MethodFunc(k.Method, k.Path, v)
	}
}

// HTTPer is something with a route table
type HTTPer interface {
	RT() RouteTable
}

// SubMuxSanitize turns an endpoint into a mount point,
// "omc/stages/" => "/omc/stages"
func SubMuxSanitize(str string) string {
	str = strings.Trim(str, "/*")
	return "/" + str
}

// StrT is a request body holding a string
type StrT struct {
	Str string `json:"str"`
}

// IntT is a request body holding an int
type IntT struct {
	Int int `json:"int"`
}

// BoolT is a request body holding a bool
type BoolT struct {
	Bool bool `json:"bool"`
}

// Reply is the body of every successful response from an axis:
// what was done, and any value that came of it
type Reply struct {
	Status  string `json:"status"`
	Payload string `json:"payload,omitempty"`
}

// EncodeAndRespond writes v as JSON with status 200
func EncodeAndRespond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding data to json state %q", err)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// Respond writes a Reply
func Respond(w http.ResponseWriter, status, payload string) {
	EncodeAndRespond(w, Reply{Status: status, Payload: payload})
}

// Decode reads a JSON request body into v, replying 400 and returning false if it can't
func Decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// GetBool calls a bool-getting function and returns the response
// as json {'bool': value}
func GetBool(fcn func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		EncodeAndRespond(w, BoolT{Bool: fcn()})
	}
}

// SetBool parses a JSON input of {'bool': value} and
// calls fcn with it
func SetBool(fcn func(bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		if !Decode(w, r, &b) {
			return
		}
		fcn(b.Bool)
		w.WriteHeader(http.StatusOK)
	}
}
