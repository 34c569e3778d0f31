package edge

import (
	"reflect"
	"testing"

	"blog-edge/internal/model"
)

func TestInjectClacks(t *testing.T) {
	tests := []struct {
		name    string
		headers model.Headers
	}{
		{"no headers", nil},
		{"unrelated headers", model.Headers{
			"content-type": {{Key: "Content-Type", Value: "text/html"}},
			"vary":         {{Key: "Vary", Value: "Accept"}, {Key: "Vary", Value: "Origin"}},
		}},
		{"existing entry", model.Headers{
			"x-clacks-overhead": {{Key: "x-clacks-overhead", Value: "GNU Someone Else"}},
			"etag":              {{Key: "ETag", Value: `"abc"`}},
		}},
		{"existing entry with other casing", model.Headers{
			"X-Clacks-Overhead": {{Key: "X-Clacks-Overhead", Value: "stale"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &model.Response{Status: "200", Headers: tt.headers.Clone()}
			others := tt.headers.Clone()
			if others == nil {
				others = model.Headers{}
			}
			others.Del(ClacksHeader)

			got := InjectClacks(resp)

			vals := got.Headers.Values(ClacksHeader)
			if len(vals) != 1 || vals[0] != ClacksValue {
				t.Fatalf("%s = %v, want [%q]", ClacksHeader, vals, ClacksValue)
			}
			if entries := got.Headers[ClacksHeader]; len(entries) != 1 || entries[0].Key != ClacksHeader {
				t.Errorf("entries = %+v, want single lower-cased entry", entries)
			}

			rest := got.Headers.Clone()
			rest.Del(ClacksHeader)
			if !reflect.DeepEqual(rest, others) {
				t.Errorf("other headers changed: got %+v, want %+v", rest, others)
			}
			if got.Status != "200" || got.Body != "" {
				t.Errorf("status/body changed: %q %q", got.Status, got.Body)
			}
		})
	}
}

func TestInjectClacks_Idempotent(t *testing.T) {
	resp := &model.Response{Status: "200", Headers: model.Headers{
		"content-type": {{Key: "Content-Type", Value: "text/html"}},
	}}

	once := InjectClacks(&model.Response{Status: resp.Status, Headers: resp.Headers.Clone()})
	twice := InjectClacks(InjectClacks(&model.Response{Status: resp.Status, Headers: resp.Headers.Clone()}))

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("InjectClacks not idempotent:\nonce  = %+v\ntwice = %+v", once, twice)
	}
}
