package uploader

import "fmt"

// NotFoundError reports a missing results directory or config file. It is
// always returned before any network activity takes place.
type NotFoundError struct {
	Kind string // "results directory" or "config file"
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Path)
}

// SerializationError reports run metadata that cannot be encoded as JSON.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing metadata: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// TransportError wraps connection, DNS, and timeout failures from the
// underlying HTTP round trip.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sending upload request: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response whose body was not JSON.
// Body holds a truncated snippet of the response for diagnostics.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upload rejected with status %d: %s", e.StatusCode, e.Body)
}

// UnexpectedContentTypeError reports a successful status whose body did not
// carry a JSON content type. An HTML page with a 200 status is a protocol
// violation, not a success.
type UnexpectedContentTypeError struct {
	ContentType string
}

func (e *UnexpectedContentTypeError) Error() string {
	return fmt.Sprintf("unexpected response content-type: %q", e.ContentType)
}

// MalformedResponseError reports a body that claimed to be JSON but failed
// to parse.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("parsing upload response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
