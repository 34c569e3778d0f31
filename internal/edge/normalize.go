// Package edge implements the functions attached to the distribution:
// URI normalization on origin requests and header injection on viewer
// responses.
package edge

import (
	"regexp"
	"strings"

	"blog-edge/internal/model"
)

// IndexDocument is served for directory-style URIs.
const IndexDocument = "index.html"

// fileSegment matches a final path segment shaped like basename.extension.
var fileSegment = regexp.MustCompile(`/[^/]+\.[^/]+$`)

// PointsToFile reports whether the last segment of uri names a file.
func PointsToFile(uri string) bool {
	return fileSegment.MatchString(uri)
}

// HasTrailingSlash reports whether uri ends with '/'.
func HasTrailingSlash(uri string) bool {
	return strings.HasSuffix(uri, "/")
}

// NeedsTrailingSlash reports whether uri is a directory path missing its
// trailing slash.
func NeedsTrailingSlash(uri string) bool {
	return !PointsToFile(uri) && !HasTrailingSlash(uri)
}

// NormalizeURI redirects directory paths that lack a trailing slash and
// rewrites slashed directory paths to their index document. The request
// is modified in place when it is returned.
func NormalizeURI(req *model.Request) model.Result {
	uri := req.URI
	if NeedsTrailingSlash(uri) {
		location := uri + "/"
		if req.Querystring != "" {
			location += "?" + req.Querystring
		}
		return model.Respond(&model.Response{
			Status:            "302",
			StatusDescription: "Moved Temporarily",
			Headers: model.Headers{
				"location": {{Key: "Location", Value: location}},
			},
		})
	}

	if HasTrailingSlash(uri) {
		req.URI = uri + IndexDocument
	}
	return model.Continue(req)
}
