package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router registers [Handler] implementations on a gorilla/mux router.
type Router struct {
	mux *mux.Router
}

// NewRouter creates an empty [Router].
func NewRouter() *Router {
	return &Router{mux: mux.NewRouter()}
}

// Use adds [Middleware] to the router's stack, applied in the order added.
func (r *Router) Use(middleware ...Middleware) {
	for _, m := range middleware {
		r.mux.Use(mux.MiddlewareFunc(m))
	}
}

// Handle registers handler for the method and path.
func (r *Router) Handle(method, path string, handler http.Handler) {
	r.mux.Handle(path, handler).Methods(method)
}

// Handler registers every route returned by [Handler.Routes] for GET requests.
func (r *Router) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.Handle(http.MethodGet, route, handler)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
