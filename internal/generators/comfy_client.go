package generators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"comfy-studio/server/internal/workflow"
)

const defaultHTTPTimeout = 300 * time.Second

// ComfyClient talks to the local ComfyUI instance over its HTTP API.
// It is stateless apart from the client id the engine uses to attribute
// queued jobs.
type ComfyClient struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
}

// NewComfyClient creates a client for the engine at baseURL
// (e.g. "http://127.0.0.1:8188").
func NewComfyClient(baseURL string) *ComfyClient {
	return &ComfyClient{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    baseURL,
		clientID:   uuid.NewString(),
	}
}

// promptRequest is the body of POST /prompt.
type promptRequest struct {
	Prompt   workflow.Graph `json:"prompt"`
	ClientID string         `json:"client_id"`
}

type promptResponse struct {
	PromptID string `json:"prompt_id"`
	Error    *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitJob queues a fully populated job graph and returns the engine's
// opaque job id. Any non-success status is a SubmissionRejectedError; the
// caller never retries.
func (c *ComfyClient) SubmitJob(ctx context.Context, graph workflow.Graph) (string, error) {
	body, err := json.Marshal(promptRequest{Prompt: graph, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("failed to encode job graph: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit job: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmissionRejectedError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var pr promptResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if pr.Error != nil {
		return "", &SubmissionRejectedError{StatusCode: resp.StatusCode, Body: pr.Error.Message}
	}
	if pr.PromptID == "" {
		return "", &SubmissionRejectedError{StatusCode: resp.StatusCode, Body: "response missing prompt_id"}
	}
	return pr.PromptID, nil
}

// HistoryStatus is the engine's per-job status block. StatusStr is only
// populated by engines that distinguish explicit failure.
type HistoryStatus struct {
	Completed bool   `json:"completed"`
	StatusStr string `json:"status_str"`
}

// HistoryEntry is one job's record in the engine history. The status block
// is absent while the job is still queued; nil means still pending.
type HistoryEntry struct {
	Status  *HistoryStatus                 `json:"status,omitempty"`
	Outputs map[string]workflow.NodeOutput `json:"outputs"`
}

// History fetches the history record for one job id. found is false while
// the job has not yet surfaced in the result set, which is expected for
// queued or still-executing jobs.
func (c *ComfyClient) History(ctx context.Context, jobID string) (HistoryEntry, bool, error) {
	u := fmt.Sprintf("%s/history?prompt_id=%s", c.baseURL, url.QueryEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return HistoryEntry{}, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HistoryEntry{}, false, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer resp.Body.Close()

	var history map[string]HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return HistoryEntry{}, false, fmt.Errorf("failed to decode history: %w", err)
	}

	entry, ok := history[jobID]
	return entry, ok, nil
}

// UploadImage sends one image to the engine's asset store and returns the
// name the engine assigned, which may differ from the suggested one.
func (c *ComfyClient) UploadImage(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	formFile, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := formFile.Write(data); err != nil {
		return "", err
	}
	_ = writer.WriteField("subdir", "input")
	_ = writer.WriteField("overwrite", "true")
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var uploaded struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if uploaded.Name == "" {
		return "", fmt.Errorf("upload response missing name")
	}
	return uploaded.Name, nil
}

// ViewURL builds the retrieval URL for an engine-side file. The file is not
// fetched eagerly; the browser or the artifact cache pulls it on demand.
func (c *ComfyClient) ViewURL(filename, subfolder, fileType string) string {
	params := url.Values{}
	params.Set("filename", filename)
	params.Set("type", fileType)
	params.Set("subfolder", subfolder)
	return fmt.Sprintf("%s/view?%s", c.baseURL, params.Encode())
}

// FetchFile downloads an engine-side file, used by the artifact cache to
// proxy downloads for the browser.
func (c *ComfyClient) FetchFile(ctx context.Context, filename, subfolder, fileType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ViewURL(filename, subfolder, fileType), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("view returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ObjectInfo fetches the engine's declared node catalog as raw JSON per
// node class. Used only to populate model selection lists at startup.
func (c *ComfyClient) ObjectInfo(ctx context.Context) (map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/object_info", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch object info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("object_info returned status %d", resp.StatusCode)
	}

	var info map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode object info: %w", err)
	}
	return info, nil
}

// HealthCheck probes the engine's queue endpoint.
func (c *ComfyClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/queue", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned status %d", resp.StatusCode)
	}
	return nil
}

// BaseURL returns the engine base URL the client was built with.
func (c *ComfyClient) BaseURL() string {
	return c.baseURL
}
