package uploader

import "encoding/json"

// UploadResult is the acknowledgment returned by the report service once a
// run has been accepted. A non-empty Error with a matching Status is data,
// not a failed upload; callers decide how to surface it.
type UploadResult struct {
	Project   string `json:"project"`
	RunID     int    `json:"run_id"`
	UIURL     string `json:"ui_url"`
	LatestURL string `json:"latest_url"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// decodeResult parses a service response body, defaulting any fields the
// server omitted: project falls back to the submitted project id and status
// to "unknown". RunID and the URLs keep their zero values.
func decodeResult(body []byte, project string) (*UploadResult, error) {
	var res UploadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}

	if res.Project == "" {
		res.Project = project
	}

	if res.Status == "" {
		res.Status = "unknown"
	}

	return &res, nil
}
