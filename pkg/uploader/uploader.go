// Package uploader implements the client side of the run upload protocol:
// it archives a directory of test-report artifacts, wraps the archive,
// a JSON metadata document, and an optional report config into one
// multipart request, and parses the service's acknowledgment.
//
// The client performs exactly one request per Upload call. It never
// retries and never logs; all failures are typed (see errors.go) so the
// integration layer can decide how loudly to complain.
package uploader

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	resultsField    = "results"
	resultsFilename = "allure-results.zip"
	metadataField   = "results-metadata"
	configField     = "config"

	zipContentType    = "application/zip"
	jsonContentType   = "application/json"
	configContentType = "text/javascript"

	// DefaultTimeout bounds the full request lifecycle when Options.Timeout
	// is left unset.
	DefaultTimeout = 60 * time.Second

	maxBodySnippet = 512
)

// Options holds the transport configuration shared by every upload through
// one Client. None of it is mutated after construction.
type Options struct {
	// BaseURL is the service root, e.g. "https://allure.example.com".
	// A trailing slash is trimmed.
	BaseURL string

	// Timeout bounds connect, send, and receive for one upload.
	// Zero means DefaultTimeout.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// Headers are set on every request, e.g. auth tokens passed through
	// from the environment.
	Headers map[string]string
}

// Client uploads test-run results to a report aggregation service. It holds
// no per-call state and is safe to reuse across sequential or concurrent
// uploads.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

// New creates a Client from transport options.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var transport http.RoundTripper
	if opts.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
		transport = t
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		headers: headers,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Upload archives resultsDir and submits it together with meta and an
// optional config part as one multipart POST to
// {baseURL}/api/v1/projects/{project}/runs.
//
// Everything local — metadata serialization, archiving, config resolution —
// happens before the first byte hits the network, so local failures never
// leave a half-submitted run behind.
func (c *Client) Upload(
	ctx context.Context,
	project string,
	resultsDir string,
	meta map[string]any,
	cfg ConfigSource,
) (*UploadResult, error) {
	if strings.TrimSpace(project) == "" {
		return nil, fmt.Errorf("project must not be empty")
	}

	if meta == nil {
		meta = map[string]any{}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	archive, err := ZipDirectory(resultsDir)
	if err != nil {
		return nil, err
	}

	cfgName, cfgData, cfgPresent, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	body, contentType, err := buildBody(archive, metaJSON, cfgName, cfgData, cfgPresent)
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/api/v1/projects/%s/runs", c.baseURL, url.PathEscape(project),
	)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	respContentType := resp.Header.Get("Content-Type")
	if !strings.Contains(respContentType, jsonContentType) {
		// A failing status wins over the content-type complaint so that
		// plain error pages surface as what they are. Only a genuinely
		// successful status with a non-JSON body is a protocol violation.
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return nil, &HTTPStatusError{
				StatusCode: resp.StatusCode,
				Body:       snippet(respBody),
			}
		}

		return nil, &UnexpectedContentTypeError{ContentType: respContentType}
	}

	return decodeResult(respBody, project)
}

// buildBody composes the multipart request body: the archive part, the
// metadata part, and the optional config part.
func buildBody(
	archive []byte,
	metaJSON []byte,
	cfgName string,
	cfgData []byte,
	cfgPresent bool,
) (body []byte, contentType string, err error) {
	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	if err := writePart(mw, resultsField, resultsFilename, zipContentType, archive); err != nil {
		return nil, "", err
	}

	if err := writePart(mw, metadataField, "", jsonContentType, metaJSON); err != nil {
		return nil, "", err
	}

	if cfgPresent {
		if err := writePart(mw, configField, cfgName, configContentType, cfgData); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}

// writePart adds one part with an explicit content type. An empty filename
// produces a bare form field.
func writePart(
	mw *multipart.Writer,
	field string,
	filename string,
	contentType string,
	data []byte,
) error {
	h := make(textproto.MIMEHeader)

	if filename == "" {
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, field))
	} else {
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	}

	h.Set("Content-Type", contentType)

	w, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating part %s: %w", field, err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing part %s: %w", field, err)
	}

	return nil
}

// snippet truncates a response body for inclusion in error messages.
func snippet(b []byte) string {
	if len(b) > maxBodySnippet {
		b = b[:maxBodySnippet]
	}

	return string(b)
}
