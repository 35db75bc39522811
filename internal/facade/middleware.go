package facade

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

type captureKey struct{}

// bodyCapture receives the raw body of a failed response.
type bodyCapture struct {
	mu   sync.Mutex
	body []byte
}

func (c *bodyCapture) set(body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.body = body
}

func (c *bodyCapture) get() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

func withCapture(ctx context.Context) (context.Context, *bodyCapture) {
	c := &bodyCapture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

func captureFrom(ctx context.Context) *bodyCapture {
	c, _ := ctx.Value(captureKey{}).(*bodyCapture)
	return c
}

// CaptureErrorBodies is an APIOptions entry that copies the body of every
// non-2xx response into the capture carried by the request context, then
// hands an identical body on to the SDK deserializer.
func CaptureErrorBodies(stack *middleware.Stack) error {
	return stack.Deserialize.Add(middleware.DeserializeMiddlewareFunc("CaptureErrorBody",
		func(ctx context.Context, in middleware.DeserializeInput, next middleware.DeserializeHandler) (
			middleware.DeserializeOutput, middleware.Metadata, error,
		) {
			out, md, err := next.HandleDeserialize(ctx, in)

			resp, ok := out.RawResponse.(*smithyhttp.Response)
			if !ok || resp.StatusCode < 300 || resp.Body == nil {
				return out, md, err
			}
			c := captureFrom(ctx)
			if c == nil {
				return out, md, err
			}

			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))
			if readErr == nil {
				c.set(body)
			}
			return out, md, err
		}), middleware.After)
}

// ResponseHeaders returns the HTTP headers of the raw response recorded in
// md, one comma-joined value per name. It is empty when no response was
// recorded (for example with fake clients).
func ResponseHeaders(md middleware.Metadata) map[string]string {
	resp, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response)
	if !ok || resp == nil || resp.Response == nil {
		return map[string]string{}
	}
	return HeaderMap(resp.Header)
}

// EffectiveURI returns the URL the request was sent to, without its query
// string, or "" when no response was recorded.
func EffectiveURI(md middleware.Metadata) string {
	resp, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response)
	if !ok || resp == nil || resp.Response == nil || resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	u := *resp.Request.URL
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}

// Metadata is the transport metadata of a response as it is written to the
// audit log.
type Metadata struct {
	StatusCode   int               `json:"statusCode"`
	EffectiveURI string            `json:"effectiveUri"`
	Headers      map[string]string `json:"headers"`
}

// ResponseMetadata collects the status, effective URI and headers recorded
// in md.
func ResponseMetadata(md middleware.Metadata) Metadata {
	meta := Metadata{EffectiveURI: EffectiveURI(md), Headers: ResponseHeaders(md)}
	if resp, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response); ok && resp != nil && resp.Response != nil {
		meta.StatusCode = resp.StatusCode
	}
	return meta
}

// HeaderMap flattens h to one comma-joined value per name.
func HeaderMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
