// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strings"
)

// Params holds the values captured by {param} segments of a matched
// pattern.
type Params map[string]string

// HandlerFunc is a routed request handler.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, p Params)

type route struct {
	method   string
	segments []string
	handler  HandlerFunc
}

// Router matches requests against a table of (method, pattern) entries.
// Pattern segments wrapped in braces capture the corresponding path
// segment; all other segments must match literally. Query strings are
// not part of matching.
type Router struct {
	routes []route
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Handle registers a handler for a method and pattern.
func (r *Router) Handle(method, pattern string, handler HandlerFunc) {
	r.routes = append(r.routes, route{
		method:   method,
		segments: splitPath(pattern),
		handler:  handler,
	})
}

// Match finds the handler for a method and path and returns the
// captured parameters.
func (r *Router) Match(method, path string) (HandlerFunc, Params, bool) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := splitPath(path)

	for _, rt := range r.routes {
		if rt.method != method {
			continue
		}
		params, ok := matchSegments(rt.segments, segments)
		if !ok {
			continue
		}
		return rt.handler, params, true
	}
	return nil, nil, false
}

// splitPath splits on '/' dropping empty segments, so leading, trailing,
// and doubled slashes are insignificant.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func matchSegments(pattern, path []string) (Params, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}

	var params Params
	for i, pseg := range pattern {
		if strings.HasPrefix(pseg, "{") && strings.HasSuffix(pseg, "}") {
			if params == nil {
				params = make(Params)
			}
			params[pseg[1:len(pseg)-1]] = path[i]
			continue
		}
		if pseg != path[i] {
			return nil, false
		}
	}
	return params, true
}
