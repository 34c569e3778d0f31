package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEvent is returned when an event does not carry the fields
// the invoked function requires.
var ErrMalformedEvent = errors.New("malformed edge event")

// EventType names the point of the request lifecycle a function runs at.
type EventType string

const (
	EventOriginRequest  EventType = "origin-request"
	EventViewerResponse EventType = "viewer-response"
)

// ParseEventType validates s as an EventType.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.ToLower(s)); t {
	case EventOriginRequest, EventViewerResponse:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// EventConfig describes the distribution that raised the event.
type EventConfig struct {
	DistributionDomainName string    `json:"distributionDomainName,omitempty"`
	DistributionID         string    `json:"distributionId,omitempty"`
	EventType              EventType `json:"eventType,omitempty"`
	RequestID              string    `json:"requestId,omitempty"`
}

// CFRecord is the per-event payload.
type CFRecord struct {
	Config   EventConfig `json:"config"`
	Request  *Request    `json:"request,omitempty"`
	Response *Response   `json:"response,omitempty"`
}

// Record wraps a CFRecord.
type Record struct {
	CF CFRecord `json:"cf"`
}

// Event is the envelope functions are invoked with.
type Event struct {
	Records []Record `json:"Records"`
}

// NewEvent builds a single-record event.
func NewEvent(cfg EventConfig, req *Request, resp *Response) *Event {
	return &Event{Records: []Record{{CF: CFRecord{Config: cfg, Request: req, Response: resp}}}}
}

// Validate checks the event carries what a function of type t needs.
// Violations wrap ErrMalformedEvent.
func (e *Event) Validate(t EventType) error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrMalformedEvent)
	}
	if len(e.Records) != 1 {
		return fmt.Errorf("%w: want exactly 1 record, got %d", ErrMalformedEvent, len(e.Records))
	}
	cf := e.Records[0].CF
	if cf.Config.EventType != "" && cf.Config.EventType != t {
		return fmt.Errorf("%w: event type %q invoked as %q", ErrMalformedEvent, cf.Config.EventType, t)
	}
	if cf.Request == nil {
		return fmt.Errorf("%w: missing request", ErrMalformedEvent)
	}
	if !strings.HasPrefix(cf.Request.URI, "/") {
		return fmt.Errorf("%w: request uri %q must start with '/'", ErrMalformedEvent, cf.Request.URI)
	}
	if t == EventViewerResponse {
		if cf.Response == nil {
			return fmt.Errorf("%w: missing response", ErrMalformedEvent)
		}
		if cf.Response.StatusCode() == 0 {
			return fmt.Errorf("%w: response status %q is not numeric", ErrMalformedEvent, cf.Response.Status)
		}
	}
	return nil
}

// Request returns the event's request record.
func (e *Event) Request() *Request { return e.Records[0].CF.Request }

// Response returns the event's response record.
func (e *Event) Response() *Response { return e.Records[0].CF.Response }
