package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// UnknownRoute is reported for requests no route matches
const UnknownRoute = "unknown"

// RouteMatcher names the route a request belongs to, for metrics, traces and logs
type RouteMatcher interface {
	Match(r *http.Request) string
}

// RouteMatcherFunc adapts a function to a RouteMatcher
type RouteMatcherFunc func(r *http.Request) string

// Match calls f(r)
func (f RouteMatcherFunc) Match(r *http.Request) string {
	return f(r)
}

// MuxRouteMatcher matches routes of a mux router
type MuxRouteMatcher struct {
	Router *mux.Router
}

// Match returns the route name, or its path template when it has no name.
// Templates keep path secrets such as the webhook secret out of metric labels.
func (m *MuxRouteMatcher) Match(r *http.Request) string {
	var match mux.RouteMatch
	if !m.Router.Match(r, &match) || match.Route == nil {
		return UnknownRoute
	}

	return routeName(match.Route)
}

func routeName(route *mux.Route) string {
	if name := route.GetName(); name != "" {
		return name
	}

	if tmpl, err := route.GetPathTemplate(); err == nil {
		return tmpl
	}

	return UnknownRoute
}
