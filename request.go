package fastagi

import "net/url"

// Request carries the parsed handshake to a Handler. Per Open Question
// 1 of SPEC_FULL.md, it owns the VariableDump's contents outright
// rather than borrowing them.
type Request struct {
	// Variables holds every agi_* line from the handshake, keyed by
	// its full "agi_name" prefix.
	Variables map[string]string

	// URI is the parsed request URI (agi_network_script or
	// agi_request).
	URI *url.URL

	// Query is URI's decoded query-parameter multimap.
	Query url.Values

	// Params holds the named-wildcard bindings the Router extracted
	// from the path (spec.md §4.F), e.g. {"id": "42"} for route
	// "/bar/:id" matching "/bar/42".
	Params map[string]string
}

// newRequest builds a Request from a parsed VariableDump and the
// bindings captured during route lookup.
func newRequest(dump *VariableDump, params map[string]string) *Request {
	if params == nil {
		params = map[string]string{}
	}
	return &Request{
		Variables: dump.Variables,
		URI:       dump.RequestURI,
		Query:     dump.Query,
		Params:    params,
	}
}

// Param returns the named wildcard binding captured by the router, or
// "" if there is none by that name.
func (r *Request) Param(name string) string {
	return r.Params[name]
}
