package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouteTable maps an exact request path to its handler. It is built once at
// startup and only read afterwards.
type RouteTable map[string]http.Handler

// NewRouter compiles routes into a dispatcher. Paths match exactly and case
// sensitively: no cleaning, no trailing-slash redirects. Anything else gets
// the fixed 404 page. The router writes nothing once it has delegated.
func NewRouter(routes RouteTable) *mux.Router {
	r := mux.NewRouter()
	r.SkipClean(true)
	for path, h := range routes {
		r.Handle(path, h)
	}
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	return r
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	GetMetrics().RecordRouteMiss()
	writeError(w, ErrRouteNotFound)
}
