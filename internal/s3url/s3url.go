// Package s3url decodes virtual-hosted-style S3 object URLs of the form
// scheme://bucket.s3.region.amazonaws.com/key[?name=value&...].
//
// Path-style URLs (scheme://s3.region.amazonaws.com/bucket/key) are not
// supported: the bucket is always taken from the first host label.
package s3url

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedURL is returned when a URL does not have the virtual-hosted shape.
var ErrMalformedURL = errors.New("malformed S3 object URL")

// URL is a decoded object URL. Query values are kept exactly as they appear
// in the raw string; they are not percent-decoded.
type URL struct {
	Protocol   string
	Host       string
	Bucket     string
	Region     string
	Key        string
	Parameters map[string]string
}

// Decode splits raw into its protocol, host, bucket, region, key and query
// parameters. It performs no I/O.
func Decode(raw string) (URL, error) {
	segments := strings.Split(raw, "/")
	if len(segments) < 3 {
		return URL{}, fmt.Errorf("%w: %q has fewer than 3 path segments", ErrMalformedURL, raw)
	}

	host := segments[2]
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return URL{}, fmt.Errorf("%w: host %q has fewer than 3 labels", ErrMalformedURL, host)
	}

	u := URL{
		Protocol: segments[0],
		Host:     host,
		Bucket:   labels[0],
		Region:   labels[2],
	}

	_, rest, found := strings.Cut(raw, host+"/")
	if !found {
		return u, nil
	}

	key, query, hasQuery := strings.Cut(rest, "?")
	u.Key = key
	if hasQuery {
		u.Parameters = parseQuery(query)
	}

	return u, nil
}

// parseQuery splits on '&' and then on the first '='. A pair without '='
// maps to the empty string.
func parseQuery(query string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		params[name] = value
	}
	return params
}

// Param returns the raw value of a query parameter.
func (u URL) Param(name string) (string, bool) {
	v, ok := u.Parameters[name]
	return v, ok
}

// String rebuilds the URL without its query string.
func (u URL) String() string {
	return u.Protocol + "//" + u.Host + "/" + u.Key
}
