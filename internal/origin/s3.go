package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"blog-edge/internal/config"
	"blog-edge/internal/metrics"
	"blog-edge/internal/model"
)

// ObjectGetter is the subset of the S3 client the store uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store fetches objects from an S3 bucket.
type S3Store struct {
	client  ObjectGetter
	bucket  string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewS3Store loads AWS credentials from the default chain and creates an
// S3Store for cfg.Origin.S3.Bucket.
func NewS3Store(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Origin.S3.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Origin.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Origin.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Origin.S3.UsePathStyle
	})

	return NewS3StoreWithClient(client, cfg, logger, m), nil
}

// NewS3StoreWithClient creates an S3Store around an existing client.
func NewS3StoreWithClient(client ObjectGetter, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  cfg.Origin.S3.Bucket,
		timeout: time.Duration(cfg.Origin.TimeoutSeconds) * time.Second,
		logger:  logger.With("component", "s3_origin", "bucket", cfg.Origin.S3.Bucket),
		metrics: m,
	}
}

// Fetch reads the object with GetObject, or HeadObject for HEAD requests.
// Conditional and range headers are passed through; a satisfied
// conditional answers 304 with no body.
func (s *S3Store) Fetch(req *model.OriginRequest) (*model.OriginResponse, error) {
	s.logger.Debug("origin request",
		"method", req.Method,
		"key", req.Key,
	)

	ctx := req.Ctx
	var cancel context.CancelFunc = func() {}
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}

	start := time.Now()
	var (
		resp *model.OriginResponse
		err  error
	)
	if req.Method == http.MethodHead {
		resp, err = s.head(ctx, req)
		cancel()
	} else {
		resp, err = s.get(ctx, req)
		if err != nil {
			cancel()
		} else {
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		}
	}
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)
	status := statusOf(resp, err)
	if s.metrics != nil {
		s.metrics.OriginDuration.WithLabelValues(config.OriginS3, method).Observe(duration)
		if status != 0 {
			s.metrics.OriginResponses.WithLabelValues(config.OriginS3, method, strconv.Itoa(status)).Inc()
		}
	}

	if err != nil {
		return nil, s.mapError(req.Key, err)
	}
	return resp, nil
}

func (s *S3Store) get(ctx context.Context, req *model.OriginRequest) (*model.OriginResponse, error) {
	cond := conditionsFrom(req.Header)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(req.Key),
		IfMatch:           cond.ifMatch,
		IfNoneMatch:       cond.ifNoneMatch,
		IfModifiedSince:   cond.ifModifiedSince,
		IfUnmodifiedSince: cond.ifUnmodifiedSince,
		Range:             cond.rng,
	})
	if err != nil {
		return nil, err
	}

	status := http.StatusOK
	if out.ContentRange != nil {
		status = http.StatusPartialContent
	}

	header := make(http.Header)
	setString(header, "Cache-Control", out.CacheControl)
	setString(header, "Content-Encoding", out.ContentEncoding)
	setString(header, "Content-Language", out.ContentLanguage)
	setString(header, "Content-Range", out.ContentRange)
	setString(header, "Content-Type", out.ContentType)
	setString(header, "Etag", out.ETag)
	setString(header, "Accept-Ranges", out.AcceptRanges)
	setTime(header, "Last-Modified", out.LastModified)

	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
		header.Set("Content-Length", strconv.FormatInt(length, 10))
	}

	return &model.OriginResponse{
		StatusCode:    status,
		Header:        header,
		ContentLength: length,
		Body:          out.Body,
	}, nil
}

func (s *S3Store) head(ctx context.Context, req *model.OriginRequest) (*model.OriginResponse, error) {
	cond := conditionsFrom(req.Header)
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(req.Key),
		IfMatch:           cond.ifMatch,
		IfNoneMatch:       cond.ifNoneMatch,
		IfModifiedSince:   cond.ifModifiedSince,
		IfUnmodifiedSince: cond.ifUnmodifiedSince,
	})
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	setString(header, "Cache-Control", out.CacheControl)
	setString(header, "Content-Encoding", out.ContentEncoding)
	setString(header, "Content-Type", out.ContentType)
	setString(header, "Etag", out.ETag)
	setTime(header, "Last-Modified", out.LastModified)

	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
		header.Set("Content-Length", strconv.FormatInt(length, 10))
	}

	return &model.OriginResponse{
		StatusCode:    http.StatusOK,
		Header:        header,
		ContentLength: length,
		Body:          http.NoBody,
	}, nil
}

// mapError converts S3 errors into origin sentinels. A satisfied
// conditional request surfaces from the SDK as a 304 error.
func (s *S3Store) mapError(key string, err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %s", ErrAccessDenied, key)
		case "NotModified":
			return fmt.Errorf("%w: %s", ErrNotModified, key)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAccessDenied, key)
		case http.StatusNotModified:
			return fmt.Errorf("%w: %s", ErrNotModified, key)
		}
	}

	return fmt.Errorf("s3 get %s: %w", key, err)
}

// statusOf returns the HTTP status of an S3 call for metrics, or 0 when
// the call never got an HTTP answer.
func statusOf(resp *model.OriginResponse, err error) int {
	if err == nil {
		return resp.StatusCode
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

// conditions are the conditional and range viewer headers in S3 input form.
type conditions struct {
	ifMatch           *string
	ifNoneMatch       *string
	ifModifiedSince   *time.Time
	ifUnmodifiedSince *time.Time
	rng               *string
}

func conditionsFrom(h http.Header) conditions {
	var c conditions
	if v := h.Get("If-Match"); v != "" {
		c.ifMatch = aws.String(v)
	}
	if v := h.Get("If-None-Match"); v != "" {
		c.ifNoneMatch = aws.String(v)
	}
	if t, ok := parseHTTPTime(h.Get("If-Modified-Since")); ok {
		c.ifModifiedSince = aws.Time(t)
	}
	if t, ok := parseHTTPTime(h.Get("If-Unmodified-Since")); ok {
		c.ifUnmodifiedSince = aws.Time(t)
	}
	if v := h.Get("Range"); v != "" {
		c.rng = aws.String(v)
	}
	return c
}

func setString(h http.Header, key string, v *string) {
	if v != nil && *v != "" {
		h.Set(key, *v)
	}
}

func setTime(h http.Header, key string, t *time.Time) {
	if t != nil && !t.IsZero() {
		h.Set(key, t.UTC().Format(http.TimeFormat))
	}
}

func parseHTTPTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// cancelOnClose releases the request context once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
