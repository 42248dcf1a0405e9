package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — job из API.
type JobResponse struct {
	ID        string         `json:"id"`
	BatchID   string         `json:"batch_id"`
	Submitter string         `json:"submitter,omitempty"`
	Status    string         `json:"status"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// SubmitJobResponse — ответ на submit.
type SubmitJobResponse struct {
	Job      JobResponse `json:"job"`
	Existing bool        `json:"existing,omitempty"`
	DryRun   bool        `json:"dry_run,omitempty"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID              string         `json:"id"`
	JobID           string         `json:"job_id"`
	Index           int            `json:"index"`
	Tenant          string         `json:"tenant,omitempty"`
	Params          InstanceParams `json:"params"`
	Status          string         `json:"status"`
	Attempts        int            `json:"attempts"`
	LastError       string         `json:"last_error,omitempty"`
	CloudInstanceID string         `json:"cloud_instance_id,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

// InstanceParams — параметры инстанса.
type InstanceParams struct {
	Cloud        string         `json:"cloud"`
	Region       string         `json:"region"`
	InstanceType string         `json:"instance_type"`
	Image        string         `json:"image"`
	Name         string         `json:"name,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// --- Request types ---

// SubmitJobRequest — создание batch job.
type SubmitJobRequest struct {
	BatchID   string           `json:"batch_id,omitempty"`
	Submitter string           `json:"submitter,omitempty"`
	Instances []InstanceParams `json:"instances"`
	Meta      map[string]any   `json:"meta,omitempty"`
	DryRun    bool             `json:"dry_run,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Armada API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// SubmitJob создаёт batch job.
func (c *Client) SubmitJob(req SubmitJobRequest) (*SubmitJobResponse, error) {
	var result SubmitJobResponse
	err := c.post("/api/v1/jobs", req, &result)
	return &result, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// ListTasks возвращает tasks для job.
func (c *Client) ListTasks(jobID string) ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list("/api/v1/jobs/"+jobID+"/tasks", &tasks)
	return tasks, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
