package textextract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 90 * time.Second
)

// HTTPClient talks to an asynchronous OCR service: it submits a job, then
// polls until the job finishes or the poll deadline passes.
type HTTPClient struct {
	baseURL      string
	httpClient   *http.Client
	logger       *zap.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewHTTPClient builds an OCR client against baseURL.
func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger.Named("textextract"),
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
	}
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type jobResponse struct {
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// ExtractText submits the document and polls the job until it terminates.
func (c *HTTPClient) ExtractText(ctx context.Context, document []byte, contentType string) (string, error) {
	jobID, err := c.submit(ctx, document, contentType)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.pollTimeout)
	for {
		job, err := c.poll(ctx, jobID)
		if err != nil {
			return "", err
		}
		switch job.Status {
		case "succeeded":
			return job.Text, nil
		case "failed":
			return "", &ExtractionError{Reason: fmt.Sprintf("ocr job failed: %s", job.Error)}
		}

		if time.Now().After(deadline) {
			return "", &ExtractionError{Reason: "ocr job took too long"}
		}
		select {
		case <-ctx.Done():
			return "", &ExtractionError{Reason: "ocr polling cancelled", Err: ctx.Err()}
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *HTTPClient) submit(ctx context.Context, document []byte, contentType string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"document":     base64.StdEncoding.EncodeToString(document),
		"content_type": contentType,
	})
	if err != nil {
		return "", &ExtractionError{Reason: "encode submit request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs", bytes.NewReader(payload))
	if err != nil {
		return "", &ExtractionError{Reason: "build submit request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ExtractionError{Reason: "submit ocr job", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", &ExtractionError{Reason: fmt.Sprintf("ocr submit returned %d: %s", resp.StatusCode, string(body))}
	}

	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return "", &ExtractionError{Reason: "decode submit response", Err: err}
	}
	if submitted.JobID == "" {
		return "", &ExtractionError{Reason: "ocr submit returned no job id"}
	}

	c.logger.Debug("ocr job submitted", zap.String("job_id", submitted.JobID))
	return submitted.JobID, nil
}

func (c *HTTPClient) poll(ctx context.Context, jobID string) (*jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+jobID, nil)
	if err != nil {
		return nil, &ExtractionError{Reason: "build poll request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ExtractionError{Reason: "poll ocr job", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ExtractionError{Reason: fmt.Sprintf("ocr poll returned %d: %s", resp.StatusCode, string(body))}
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, &ExtractionError{Reason: "decode poll response", Err: err}
	}
	return &job, nil
}
