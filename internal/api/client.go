package api

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/divelog"
	"github.com/banshee-data/glider-logs/internal/httputil"
	"github.com/banshee-data/glider-logs/internal/store"
)

// Client talks to a remote merge server.
type Client struct {
	BaseURL string
	HTTP    httputil.HTTPClient
}

// NewClient returns a Client for the server at baseURL. A nil c uses
// http.DefaultClient.
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: c}
}

// NewMergeRequest encodes records into a MergeRequest.
func NewMergeRequest(records []dive.Record) (*MergeRequest, error) {
	req := &MergeRequest{Records: make([]json.RawMessage, len(records))}
	for i, r := range records {
		data, err := divelog.Encode(r)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.Header, err)
		}
		req.Records[i] = data
	}
	return req, nil
}

// Merge posts req and returns the formatted merge output as JSON. With
// save the server also stores the run.
func (c *Client) Merge(req *MergeRequest, save bool) ([]byte, error) {
	u := c.BaseURL + "/api/merge"
	if save {
		u += "?save=true"
	}
	return httputil.PostJSON(c.HTTP, u, req)
}

// ListRuns returns the runs saved on the server, newest first.
func (c *Client) ListRuns() ([]store.RunSummary, error) {
	data, err := httputil.GetJSON(c.HTTP, c.BaseURL+"/api/runs")
	if err != nil {
		return nil, err
	}
	var runs []store.RunSummary
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to decode runs: %w", err)
	}
	return runs, nil
}

// Scalar fetches one stored scalar column as raw JSON.
func (c *Client) Scalar(runID, field string) ([]byte, error) {
	return httputil.GetJSON(c.HTTP, fmt.Sprintf("%s/api/runs/%s/scalars/%s",
		c.BaseURL, url.PathEscape(runID), url.PathEscape(field)))
}
