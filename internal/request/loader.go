package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aeromap/odm-orchestrator/internal/domain"
)

// Loader-specific errors
var (
	// ErrNotADirectory is returned when the request path is not a directory.
	ErrNotADirectory = errors.New("request path is not a directory")

	// ErrDescriptorMissing is returned when request.json is absent.
	ErrDescriptorMissing = errors.New("request.json missing in request directory")

	// ErrNoDataGroupDirs is returned when the request directory has no
	// data type subdirectories at all.
	ErrNoDataGroupDirs = errors.New("at least one data type subdirectory is required")

	// ErrNoImages is returned when none of the requested data types has
	// any images on disk.
	ErrNoImages = errors.New("no images found for any requested data type")
)

// descriptorName is the request metadata file inside a request directory.
const descriptorName = "request.json"

// imageExtensions lists the file suffixes treated as imagery.
var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".tif": {}, ".tiff": {},
}

// Loader parses request descriptors and resolves their data groups from the
// filesystem.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger.With("component", "request_loader")}
}

// ValidateStructure checks that the request directory has the expected
// layout before anything is parsed.
func (l *Loader) ValidateStructure(requestPath string) error {
	info, err := os.Stat(requestPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, requestPath)
	}
	if _, err := os.Stat(filepath.Join(requestPath, descriptorName)); err != nil {
		return fmt.Errorf("%w: %s", ErrDescriptorMissing, requestPath)
	}
	entries, err := os.ReadDir(requestPath)
	if err != nil {
		return fmt.Errorf("failed to read request directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return nil
		}
	}
	return ErrNoDataGroupDirs
}

// Load parses and validates the request descriptor in the given directory.
func (l *Loader) Load(requestPath string) (*domain.ProcessingRequest, error) {
	if err := l.ValidateStructure(requestPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(requestPath, descriptorName))
	if err != nil {
		return nil, fmt.Errorf("failed to read request descriptor: %w", err)
	}

	var req domain.ProcessingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request descriptor: %w", err)
	}
	req.Path = requestPath

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request descriptor: %w", err)
	}

	l.logger.Debug("request descriptor loaded",
		"request_id", req.RequestID,
		"situation_id", req.SituationID,
		"datatype_ids", req.DataTypeIDs)
	return &req, nil
}

// DiscoverGroups resolves the image set for every data type the request
// names. Data types with no images on disk are skipped with a warning; an
// error is returned only when no group has any imagery at all.
func (l *Loader) DiscoverGroups(req *domain.ProcessingRequest) ([]domain.DataGroup, error) {
	groups := make([]domain.DataGroup, 0, len(req.DataTypeIDs))
	for _, id := range req.DataTypeIDs {
		dataType, err := domain.ParseDataType(id)
		if err != nil {
			return nil, err
		}
		groupPath := filepath.Join(req.Path, dataType.Name())
		images, err := findImages(groupPath)
		if err != nil {
			l.logger.Warn("missing data type directory",
				"request_id", req.RequestID,
				"datatype_id", id,
				"path", groupPath)
			continue
		}
		if len(images) == 0 {
			l.logger.Warn("no images found for data type",
				"request_id", req.RequestID,
				"datatype_id", id,
				"path", groupPath)
			continue
		}
		groups = append(groups, domain.DataGroup{
			Type:   dataType,
			Path:   groupPath,
			Images: images,
		})
	}
	if len(groups) == 0 {
		return nil, ErrNoImages
	}
	return groups, nil
}

// findImages returns the sorted image files directly inside root.
func findImages(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := imageExtensions[ext]; ok {
			images = append(images, filepath.Join(root, entry.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}
