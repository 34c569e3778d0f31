package edge

import (
	"errors"
	"fmt"

	"blog-edge/internal/metrics"
	"blog-edge/internal/model"
)

// ErrUnknownFunction is returned when a function name is not registered.
var ErrUnknownFunction = errors.New("unknown edge function")

// Function names.
const (
	URINormalizer  = "uri-normalizer"
	ClacksOverhead = "clacks-overhead"
)

// Function is an edge function bound to one point of the request lifecycle.
// OnOriginRequest is set for origin-request functions, OnViewerResponse
// for viewer-response functions.
type Function struct {
	Name             string
	Event            model.EventType
	OnOriginRequest  func(*model.Request) model.Result
	OnViewerResponse func(*model.Response) *model.Response
}

var registry = map[string]Function{
	URINormalizer: {
		Name:            URINormalizer,
		Event:           model.EventOriginRequest,
		OnOriginRequest: NormalizeURI,
	},
	ClacksOverhead: {
		Name:             ClacksOverhead,
		Event:            model.EventViewerResponse,
		OnViewerResponse: InjectClacks,
	},
}

// Lookup returns the registered function called name.
func Lookup(name string) (Function, error) {
	fn, ok := registry[name]
	if !ok {
		return Function{}, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return fn, nil
}

// DefaultOriginRequest and DefaultViewerResponse are the associations used
// when none are configured.
var (
	DefaultOriginRequest  = []string{URINormalizer}
	DefaultViewerResponse = []string{ClacksOverhead}
)

// Chain holds the functions associated with a distribution behaviour.
type Chain struct {
	originRequest  []Function
	viewerResponse []Function
	metrics        *metrics.Metrics
}

// NewChain resolves the named associations. Each name must be registered
// for the event type it is associated with. The metrics parameter is
// optional; pass nil to disable outcome recording.
func NewChain(originRequest, viewerResponse []string, m *metrics.Metrics) (*Chain, error) {
	c := &Chain{metrics: m}
	var err error
	if c.originRequest, err = resolve(originRequest, model.EventOriginRequest); err != nil {
		return nil, err
	}
	if c.viewerResponse, err = resolve(viewerResponse, model.EventViewerResponse); err != nil {
		return nil, err
	}
	return c, nil
}

func resolve(names []string, t model.EventType) ([]Function, error) {
	fns := make([]Function, 0, len(names))
	for _, name := range names {
		fn, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if fn.Event != t {
			return nil, fmt.Errorf("function %q runs on %s, cannot be associated with %s", name, fn.Event, t)
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

// OriginRequestNames returns the configured origin-request function names.
func (c *Chain) OriginRequestNames() []string { return names(c.originRequest) }

// ViewerResponseNames returns the configured viewer-response function names.
func (c *Chain) ViewerResponseNames() []string { return names(c.viewerResponse) }

func names(fns []Function) []string {
	out := make([]string, len(fns))
	for i, fn := range fns {
		out[i] = fn.Name
	}
	return out
}

// RunOriginRequest runs the origin-request functions in order, stopping at
// the first one that generates a response.
func (c *Chain) RunOriginRequest(req *model.Request) model.Result {
	res := model.Continue(req)
	for _, fn := range c.originRequest {
		before := res.Request.URI
		res = fn.OnOriginRequest(res.Request)
		switch {
		case res.Generated():
			c.observe(fn.Name, "redirect")
			return res
		case res.Request.URI != before:
			c.observe(fn.Name, "rewrite")
		default:
			c.observe(fn.Name, "passthrough")
		}
	}
	return res
}

// RunViewerResponse runs every viewer-response function over resp.
func (c *Chain) RunViewerResponse(resp *model.Response) *model.Response {
	for _, fn := range c.viewerResponse {
		resp = fn.OnViewerResponse(resp)
		c.observe(fn.Name, "inject")
	}
	return resp
}

// Invoke runs the functions associated with t over a platform event.
// Events that fail validation are rejected with model.ErrMalformedEvent.
func (c *Chain) Invoke(t model.EventType, ev *model.Event) (model.Result, error) {
	if err := ev.Validate(t); err != nil {
		return model.Result{}, err
	}
	switch t {
	case model.EventOriginRequest:
		return c.RunOriginRequest(ev.Request()), nil
	case model.EventViewerResponse:
		return model.Respond(c.RunViewerResponse(ev.Response())), nil
	default:
		return model.Result{}, fmt.Errorf("unsupported event type %q", t)
	}
}

func (c *Chain) observe(function, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.FunctionInvocations.WithLabelValues(function, outcome).Inc()
}
