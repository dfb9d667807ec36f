package fastagi

import "strings"

// segment is one compiled piece of a route pattern: either a literal
// path component or a named wildcard (":name").
type segment struct {
	literal string
	name    string
}

// route pairs a compiled pattern with the Handler it dispatches to.
type route struct {
	pattern  string
	segments []segment
	handler  Handler
}

// Router is an ordered (pattern, Handler) table. Lookup walks entries
// in insertion order and returns the first match (spec.md §4.F). It is
// shared and safe for concurrent reads across connection goroutines
// once construction (Handle/Use calls) is finished; it carries no
// other mutable state.
type Router struct {
	routes []route
	layers []Layer
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// compileSegments splits a route pattern into literal and wildcard
// segments. Patterns support exactly-one-segment wildcards (":name");
// there is no trailing catch-all, per spec.md §3's Route pattern
// definition.
func compileSegments(pattern string) []segment {
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segs := make([]segment, len(parts))
	for i, p := range parts {
		if strings.HasPrefix(p, ":") && len(p) > 1 {
			segs[i] = segment{name: p[1:]}
		} else {
			segs[i] = segment{literal: p}
		}
	}
	return segs
}

// Handle registers handler against pattern. Earlier registrations take
// priority over later ones when more than one pattern would match the
// same path (spec.md §8 property 5).
func (r *Router) Handle(pattern string, handler Handler) *Router {
	r.routes = append(r.routes, route{
		pattern:  pattern,
		segments: compileSegments(pattern),
		handler:  handler,
	})
	return r
}

// HandleFunc is the HandlerFunc-typed convenience form of Handle.
func (r *Router) HandleFunc(pattern string, f HandlerFunc) *Router {
	return r.Handle(pattern, f)
}

// Use appends layers to the router's decorator stack. Composition is
// outer-first: Use(L1, L2) wraps every registered handler H as
// L1(L2(H)) (spec.md §4.G).
func (r *Router) Use(layers ...Layer) *Router {
	r.layers = append(r.layers, layers...)
	return r
}

// lookup finds the handler registered for path, applying the router's
// layers, along with the wildcard bindings captured from path.
func (r *Router) lookup(path string) (Handler, map[string]string, bool) {
	segs := strings.Split(strings.Trim(path, "/"), "/")

	for _, rt := range r.routes {
		if len(rt.segments) != len(segs) {
			continue
		}

		params := make(map[string]string)
		matched := true
		for i, s := range rt.segments {
			if s.name != "" {
				if segs[i] == "" {
					matched = false
					break
				}
				params[s.name] = segs[i]
				continue
			}
			if s.literal != segs[i] {
				matched = false
				break
			}
		}

		if matched {
			return r.wrap(rt.handler), params, true
		}
	}

	return nil, nil, false
}

// wrap applies the router's layers outer-first around h.
func (r *Router) wrap(h Handler) Handler {
	for i := len(r.layers) - 1; i >= 0; i-- {
		h = r.layers[i](h)
	}
	return h
}
