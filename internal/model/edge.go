// Package model defines the records exchanged between the edge, its
// functions and the origin store.
package model

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Header is a single header entry. Key keeps the casing the entry was
// written with; the map key it is stored under is always lower-cased.
type Header struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

// Headers maps a lower-cased header name to its entries.
type Headers map[string][]Header

// Get returns the first value for name, or "" when absent.
func (h Headers) Get(name string) string {
	vals := h.Values(name)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Values returns every value stored for name under any casing.
func (h Headers) Values(name string) []string {
	var out []string
	for key, entries := range h {
		if !strings.EqualFold(key, name) {
			continue
		}
		for _, e := range entries {
			out = append(out, e.Value)
		}
	}
	return out
}

// Set replaces every entry for name with a single entry.
func (h Headers) Set(name, value string) {
	h.Del(name)
	lower := strings.ToLower(name)
	h[lower] = []Header{{Key: name, Value: value}}
}

// Del removes name under any casing.
func (h Headers) Del(name string) {
	for key := range h {
		if strings.EqualFold(key, name) {
			delete(h, key)
		}
	}
}

// Clone returns a deep copy of h.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for key, entries := range h {
		out[key] = append([]Header(nil), entries...)
	}
	return out
}

// HeadersFromHTTP converts a net/http header into edge headers.
func HeadersFromHTTP(src http.Header) Headers {
	dst := make(Headers, len(src))
	for key, vals := range src {
		lower := strings.ToLower(key)
		for _, v := range vals {
			dst[lower] = append(dst[lower], Header{Key: key, Value: v})
		}
	}
	return dst
}

// ToHTTP converts edge headers into a net/http header.
func (h Headers) ToHTTP() http.Header {
	dst := make(http.Header, len(h))
	for key, entries := range h {
		for _, e := range entries {
			name := e.Key
			if name == "" {
				name = key
			}
			dst.Add(name, e.Value)
		}
	}
	return dst
}

// Request is the viewer request as seen by origin-request functions.
type Request struct {
	ClientIP    string  `json:"clientIp,omitempty"`
	Method      string  `json:"method,omitempty"`
	URI         string  `json:"uri"`
	Querystring string  `json:"querystring"`
	Headers     Headers `json:"headers"`
}

// Response is a response record: either generated at the edge or built
// from the origin's answer.
type Response struct {
	Status            string  `json:"status"`
	StatusDescription string  `json:"statusDescription,omitempty"`
	Headers           Headers `json:"headers"`
	Body              string  `json:"body,omitempty"`
}

// NewResponse returns a generated response with the given status code.
func NewResponse(code int) *Response {
	return &Response{
		Status:            strconv.Itoa(code),
		StatusDescription: http.StatusText(code),
		Headers:           make(Headers),
	}
}

// StatusCode parses Status. It returns 0 if Status is not numeric.
func (r *Response) StatusCode() int {
	code, err := strconv.Atoi(r.Status)
	if err != nil {
		return 0
	}
	return code
}

// Result is what an origin-request function hands back: the request to
// continue with, or a response that short-circuits the origin fetch.
// Exactly one field is set.
type Result struct {
	Request  *Request
	Response *Response
}

// Continue wraps a request result.
func Continue(req *Request) Result { return Result{Request: req} }

// Respond wraps a generated response result.
func Respond(resp *Response) Result { return Result{Response: resp} }

// Generated reports whether the result short-circuits the origin.
func (r Result) Generated() bool { return r.Response != nil }

// MarshalJSON encodes whichever member is set.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Response != nil {
		return json.Marshal(r.Response)
	}
	return json.Marshal(r.Request)
}
