package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/aeromap/odm-orchestrator/internal/config"
	"github.com/aeromap/odm-orchestrator/internal/domain"
)

// Uploader-specific errors
var (
	// ErrMissingResults is returned when a completed job's asset tree
	// contains none of the expected result files.
	ErrMissingResults = errors.New("missing result files in job output")

	// ErrPackageNotFound is returned when no catalog package exists for
	// the request's situation.
	ErrPackageNotFound = errors.New("no catalog package found for request")
)

// resultFile describes one expected output of a completed job.
type resultFile struct {
	relPath string
	format  string
}

// expectedResults lists the job outputs forwarded to the catalog. Only
// files actually present are uploaded, but at least one must exist.
var expectedResults = []resultFile{
	{relPath: filepath.Join("odm_orthophoto", "odm_orthophoto.tif"), format: "GeoTIFF"},
	{relPath: filepath.Join("odm_report", "report.pdf"), format: "PDF"},
}

// Uploader submits job outputs to the archival catalog.
type Uploader struct {
	cfg        config.CatalogConfig
	tokens     *TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewUploader creates an Uploader for the configured catalog.
func NewUploader(cfg config.CatalogConfig, logger *slog.Logger) *Uploader {
	return &Uploader{
		cfg:        cfg,
		tokens:     NewTokenSource(cfg.Auth, logger),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     logger.With("component", "catalog_uploader"),
	}
}

// ProcessResult uploads the result files of one completed job. It resolves
// the catalog package for the request, then creates one resource per result
// file found under resultDir.
func (u *Uploader) ProcessResult(ctx context.Context, req *domain.ProcessingRequest, tracker *domain.TaskTracker, resultDir string) error {
	files := findResultFiles(resultDir)
	if len(files) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingResults, resultDir)
	}

	token, err := u.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("catalog authentication failed: %w", err)
	}

	packageID, err := u.findPackage(ctx, token, req.RequestID)
	if err != nil {
		return err
	}

	for _, file := range files {
		name := resourceName(req, tracker.DataType, filepath.Base(file.relPath))
		if err := u.createResource(ctx, token, packageID, name, file, resultDir); err != nil {
			return err
		}
		u.logger.Info("result file uploaded",
			"request_id", req.RequestID,
			"datatype", tracker.DataType.Name(),
			"resource", name)
	}
	return nil
}

// findResultFiles returns the expected result files present under resultDir.
func findResultFiles(resultDir string) []resultFile {
	var found []resultFile
	for _, file := range expectedResults {
		if _, err := os.Stat(filepath.Join(resultDir, file.relPath)); err == nil {
			found = append(found, file)
		}
	}
	return found
}

// resourceName builds the catalog resource name for one result file.
func resourceName(req *domain.ProcessingRequest, dataType domain.DataType, fileName string) string {
	return fmt.Sprintf("%s_%s_%s_%s",
		req.Start.Format("2006-01-02"), req.RequestID, dataType.Name(), fileName)
}

// findPackage locates the catalog package associated with the request.
func (u *Uploader) findPackage(ctx context.Context, token, requestID string) (string, error) {
	searchURL := fmt.Sprintf("%s/api/action/package_search?include_private=true&q=%s",
		u.cfg.URL, url.QueryEscape(fmt.Sprintf("*:*%q*", requestID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build package search: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("package search failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("package search failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Result struct {
			Results []struct {
				ID string `json:"id"`
			} `json:"results"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("invalid package search response: %w", err)
	}
	if len(payload.Result.Results) == 0 {
		return "", fmt.Errorf("%w: %s", ErrPackageNotFound, requestID)
	}
	return payload.Result.Results[0].ID, nil
}

// createResource uploads one file as a catalog resource.
func (u *Uploader) createResource(ctx context.Context, token, packageID, name string, file resultFile, resultDir string) error {
	path := filepath.Join(resultDir, file.relPath)
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open result file: %w", err)
	}
	defer func() { _ = src.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fields := map[string]string{
		"package_id": packageID,
		"name":       name,
		"format":     file.format,
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to build upload request: %w", err)
		}
	}
	part, err := writer.CreateFormFile("upload", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to read result file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.URL+"/api/action/resource_create", &buf)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resource upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resource upload failed with status %d", resp.StatusCode)
	}
	return nil
}
