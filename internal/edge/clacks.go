package edge

import "blog-edge/internal/model"

// http://www.gnuterrypratchett.com
const (
	ClacksHeader = "x-clacks-overhead"
	ClacksValue  = "GNU Terry Pratchett"
)

// InjectClacks sets the clacks overhead header on resp, replacing any
// existing entry so the response carries exactly one.
func InjectClacks(resp *model.Response) *model.Response {
	if resp.Headers == nil {
		resp.Headers = make(model.Headers)
	}
	resp.Headers.Set(ClacksHeader, ClacksValue)
	return resp
}
