// Package router is a thin layer over http.ServeMux that adds per-route and
// per-group middleware chains.
package router

import (
	"net/http"
	"slices"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router registers "METHOD /pattern" routes on a shared mux. Groups share the
// mux and extend the parent's chain.
type Router struct {
	mux    *http.ServeMux
	chain  []Middleware
	routes *[]string
}

// New creates a Router whose middleware runs, in order, before every route.
func New(middleware ...Middleware) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		chain:  middleware,
		routes: new([]string),
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) Get(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodGet, pattern, h, mw...)
}

func (r *Router) Post(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPost, pattern, h, mw...)
}

func (r *Router) Put(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPut, pattern, h, mw...)
}

func (r *Router) Delete(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodDelete, pattern, h, mw...)
}

// Handle registers h for method and pattern behind the router's chain and mw.
func (r *Router) Handle(method, pattern string, h http.Handler, mw ...Middleware) {
	route := method + " " + pattern
	*r.routes = append(*r.routes, route)
	r.mux.Handle(route, r.wrap(h, mw))
}

// NotFound registers the handler for requests no route matches. It runs
// behind the router's middleware so unmatched requests are still logged.
func (r *Router) NotFound(h http.HandlerFunc) {
	r.mux.Handle("/", r.wrap(h, nil))
}

// Group returns a router on the same mux with mw appended to the chain.
func (r *Router) Group(mw ...Middleware) *Router {
	return &Router{
		mux:    r.mux,
		chain:  append(slices.Clone(r.chain), mw...),
		routes: r.routes,
	}
}

// Routes lists every registered "METHOD /pattern", groups included, in
// registration order.
func (r *Router) Routes() []string {
	return slices.Clone(*r.routes)
}

// wrap builds chain[0](chain[1](...(h))), so middleware runs in the order given.
func (r *Router) wrap(h http.Handler, mw []Middleware) http.Handler {
	all := append(slices.Clone(r.chain), mw...)
	for i := len(all) - 1; i >= 0; i-- {
		h = all[i](h)
	}
	return h
}
