package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/poller"
	"github.com/micheleDibi/StyleForge-sub000/pkg/requestid"
)

const apiV1Prefix = "/api/v1"

var ErrJobNotFound = errors.New("job not found")

// familyPaths maps a job family to the collection serving its status.
var familyPaths = map[api.JobFamily]string{
	api.JobFamilyGeneric:      "jobs",
	api.JobFamilyTraining:     "training/jobs",
	api.JobFamilyGeneration:   "generation/jobs",
	api.JobFamilyHumanization: "humanization/jobs",
	api.JobFamilyThesis:       "thesis/jobs",
	api.JobFamilyScan:         "detection/scans",
}

// HTTPError is returned for any non-200 status response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrJobNotFound && e.StatusCode == http.StatusNotFound
}

// JobsClient reads job statuses from the StyleForge API.
type JobsClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewJobsClient(baseURL string, httpClient *http.Client) *JobsClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &JobsClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// JobPath returns the path of a job status resource.
func JobPath(family api.JobFamily, jobID string) (string, error) {
	collection, ok := familyPaths[family]
	if !ok {
		return "", fmt.Errorf("no endpoint for job family %q", family)
	}
	return fmt.Sprintf("%s/%s/%s", apiV1Prefix, collection, url.PathEscape(jobID)), nil
}

func (c *JobsClient) GetJobStatus(ctx context.Context, family api.JobFamily, jobID string) (*api.JobStatus, error) {
	path, err := JobPath(family, jobID)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	requestid.Set(ctx, httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to get status of job %s: %w", jobID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	var status api.JobStatus
	if err := json.Unmarshal(bodyBytes, &status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if status.JobId == "" {
		status.JobId = jobID
	}

	return &status, nil
}

// Fetcher binds the client to a job family for use by a poller.
func (c *JobsClient) Fetcher(family api.JobFamily) poller.Fetcher {
	return poller.FetchFunc(func(ctx context.Context, jobID string) (*api.JobStatus, error) {
		return c.GetJobStatus(ctx, family, jobID)
	})
}
