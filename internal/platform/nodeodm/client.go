package nodeodm

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aeromap/odm-orchestrator/internal/config"
	"github.com/aeromap/odm-orchestrator/internal/domain"
)

// Client talks to one compute node over its REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the configured node.
func NewClient(cfg config.NodeConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.URL(),
		token:   cfg.Token,
		httpClient: &http.Client{
			// Asset downloads of large orthophotos can take a while;
			// per-request contexts bound the other calls.
			Timeout: 30 * time.Minute,
		},
		logger: logger.With("component", "nodeodm_client"),
	}
}

// endpoint builds a node URL with the auth token attached.
func (c *Client) endpoint(path string) string {
	u := c.baseURL + path
	if c.token != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + "token=" + url.QueryEscape(c.token)
	}
	return u
}

// getJSON performs a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, op, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return &NodeError{Op: op, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NodeError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &NodeError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response status")}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NodeError{Op: op, Err: err}
	}
	if err := decodeNodeJSON(body, out); err != nil {
		return &NodeError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// decodeNodeJSON decodes a node response, surfacing the in-band error field
// the node uses for protocol failures on 200 responses.
func decodeNodeJSON(body []byte, out interface{}) error {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Error != "" {
		return fmt.Errorf("node error: %s", probe.Error)
	}
	return json.Unmarshal(body, out)
}

// Info fetches node metadata. Used as an availability probe before
// submissions and administrative operations.
func (c *Client) Info(ctx context.Context) (*NodeInfo, error) {
	var info NodeInfo
	if err := c.getJSON(ctx, "info", "/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListJobs returns the full info of every job known to the node. The listing
// endpoint only returns identifiers, so each job costs one extra info call.
func (c *Client) ListJobs(ctx context.Context) ([]JobInfo, error) {
	var entries []struct {
		UUID string `json:"uuid"`
	}
	if err := c.getJSON(ctx, "list jobs", "/task/list", &entries); err != nil {
		return nil, err
	}
	jobs := make([]JobInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := c.JobInfo(ctx, entry.UUID)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *info)
	}
	return jobs, nil
}

// JobInfo fetches the current status of one job.
func (c *Client) JobInfo(ctx context.Context, id string) (*JobInfo, error) {
	var raw taskInfoResponse
	if err := c.getJSON(ctx, "job info", "/task/"+id+"/info", &raw); err != nil {
		return nil, err
	}
	info := raw.toJobInfo()
	return &info, nil
}

// CreateJob uploads the given images and creates a named job with the given
// processing options. The options map is serialized to the node's
// name/value option list.
func (c *Client) CreateJob(ctx context.Context, images []string, options map[string]string, name string) (*JobInfo, error) {
	const op = "create job"

	optionList := make([]map[string]string, 0, len(options))
	for optName, optValue := range options {
		optionList = append(optionList, map[string]string{"name": optName, "value": optValue})
	}
	optionJSON, err := json.Marshal(optionList)
	if err != nil {
		return nil, &NodeError{Op: op, Err: err}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("name", name); err != nil {
		return nil, &NodeError{Op: op, Err: err}
	}
	if err := writer.WriteField("options", string(optionJSON)); err != nil {
		return nil, &NodeError{Op: op, Err: err}
	}
	for _, image := range images {
		if err := attachImage(writer, image); err != nil {
			return nil, &NodeError{Op: op, Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, &NodeError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/task/new"), &buf)
	if err != nil {
		return nil, &NodeError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NodeError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NodeError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &NodeError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response status")}
	}

	var created struct {
		UUID string `json:"uuid"`
	}
	if err := decodeNodeJSON(body, &created); err != nil {
		return nil, &NodeError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	c.logger.Debug("job created on node", "job_id", created.UUID, "name", name, "image_count", len(images))

	return &JobInfo{
		ID:     created.UUID,
		Name:   name,
		Status: domain.JobStatusQueued,
	}, nil
}

// Cancel asks the node to cancel a job.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.postUUID(ctx, "cancel job", "/task/cancel", id)
}

// Remove deletes a job and its artifacts from the node.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.postUUID(ctx, "remove job", "/task/remove", id)
}

// postUUID posts a form with a single uuid field and checks the in-band
// success flag.
func (c *Client) postUUID(ctx context.Context, op, path, id string) error {
	form := url.Values{"uuid": {id}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), strings.NewReader(form.Encode()))
	if err != nil {
		return &NodeError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NodeError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NodeError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &NodeError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response status")}
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := decodeNodeJSON(body, &result); err != nil {
		return &NodeError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if !result.Success {
		return &NodeError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("node reported failure")}
	}
	return nil
}

// DownloadAssets fetches the job's result archive and extracts it under
// destDir. Returns the directory the assets were extracted into.
func (c *Client) DownloadAssets(ctx context.Context, id, destDir string) (string, error) {
	const op = "download assets"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/task/"+id+"/download/all.zip"), nil)
	if err != nil {
		return "", &NodeError{Op: op, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NodeError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &NodeError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response status")}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &NodeError{Op: op, Err: err}
	}
	archivePath := filepath.Join(destDir, "all.zip")
	if err := writeFile(archivePath, resp.Body); err != nil {
		return "", &NodeError{Op: op, Err: err}
	}
	defer func() { _ = os.Remove(archivePath) }()

	if err := extractArchive(archivePath, destDir); err != nil {
		return "", &NodeError{Op: op, Err: err}
	}
	c.logger.Debug("assets downloaded", "job_id", id, "dest", destDir)
	return destDir, nil
}

func attachImage(writer *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	part, err := writer.CreateFormFile("images", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func writeFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// extractArchive unpacks a zip archive into destDir, refusing entries that
// would escape it.
func extractArchive(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	for _, entry := range reader.File {
		target := filepath.Join(destDir, entry.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", entry.Name)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := entry.Open()
		if err != nil {
			return err
		}
		if err := writeFile(target, src); err != nil {
			_ = src.Close()
			return err
		}
		_ = src.Close()
	}
	return nil
}
