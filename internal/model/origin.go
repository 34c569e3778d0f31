package model

import (
	"context"
	"io"
	"net/http"
)

// ViewerRequest is an inbound request handed to the edge pipeline.
type ViewerRequest struct {
	Ctx        context.Context
	Method     string
	Path       string // percent-encoded, as sent by the viewer
	RawQuery   string
	ClientIP   string
	Header     http.Header
	DomainName string
	RequestID  string
}

// OriginRequest is a fetch issued to the origin store.
type OriginRequest struct {
	Ctx    context.Context
	Method string
	Key    string // object key, prefix applied, no leading slash
	Header http.Header
}

// OriginResponse is the origin's answer. Body is streamed back to the viewer.
type OriginResponse struct {
	StatusCode    int
	Header        http.Header
	ContentLength int64 // -1 when unknown
	Body          io.ReadCloser
}
