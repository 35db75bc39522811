package facade

import (
	"encoding/xml"
	"errors"
	"fmt"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"aws_facade/internal/audit"
)

var (
	// ErrAlreadyExists is returned by a non-overriding write onto an existing object.
	ErrAlreadyExists = errors.New("target already exists")

	// ErrNotFound is returned by a checked delete of a missing object.
	ErrNotFound = errors.New("target does not exist")
)

// TransportError describes a service-level failure reported by AWS.
type TransportError struct {
	Code       string
	Message    string
	StatusCode int
	RequestID  string
	// Body is the raw error response when it was captured, otherwise an
	// XML error document rebuilt from the fields above.
	Body string
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("aws returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("aws error %s: %s", e.Code, e.Message)
}

type errorDocument struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId,omitempty"`
}

// AsTransportError reports whether err carries an AWS API error and, if so,
// describes it. err itself is left untouched.
func AsTransportError(err error) (*TransportError, bool) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return nil, false
	}

	te := &TransportError{
		Code:    apiErr.ErrorCode(),
		Message: apiErr.ErrorMessage(),
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		te.StatusCode = respErr.HTTPStatusCode()
		te.RequestID = respErr.ServiceRequestID()
	}

	doc, marshalErr := xml.Marshal(errorDocument{Code: te.Code, Message: te.Message, RequestID: te.RequestID})
	if marshalErr == nil {
		te.Body = string(doc)
	}

	return te, true
}

// Severity maps an error to the level it is audited at: AWS API errors and
// violated preconditions are ERROR, everything else is FATAL.
func Severity(err error) audit.Level {
	if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrNotFound) {
		return audit.LevelError
	}
	if _, ok := AsTransportError(err); ok {
		return audit.LevelError
	}
	return audit.LevelFatal
}
