package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/services"
	"github.com/ersonp/spellstock-core/internal/infrastructure/parsers"
)

// IngestHandler runs prediction feeds through the pipeline.
type IngestHandler struct {
	pipeline *services.Pipeline
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(pipeline *services.Pipeline) *IngestHandler {
	return &IngestHandler{
		pipeline: pipeline,
	}
}

// IngestResult contains the result of ingesting one feed.
type IngestResult struct {
	FilePath string
	Summary  *services.PipelineSummary
}

// IngestBatchResult contains the result of batch ingestion.
type IngestBatchResult struct {
	TotalFiles   int
	TotalAlerts  int
	TotalActions int
	FileResults  []*IngestResult
	Errors       []error
}

// Handle ingests one feed file. The format follows the file extension
// unless format is set.
func (h *IngestHandler) Handle(ctx context.Context, filePath, format string) (*IngestResult, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("accessing file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", absPath)
	}

	parser := parsers.ForFormat(format)
	if format == "" {
		parser = parsers.ForFile(absPath)
	}
	if parser == nil {
		return nil, fmt.Errorf("unsupported feed format for %s (use json, jsonl or csv)", absPath)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	summary, err := h.run(ctx, parser, file)
	if err != nil {
		return nil, err
	}

	return &IngestResult{
		FilePath: absPath,
		Summary:  summary,
	}, nil
}

// HandleReader ingests a feed from r in the given format.
func (h *IngestHandler) HandleReader(ctx context.Context, r io.Reader, format string) (*services.PipelineSummary, error) {
	parser := parsers.ForFormat(format)
	if parser == nil {
		return nil, &entities.ValidationError{Field: "format", Value: format, Message: "unsupported feed format (use json, jsonl or csv)"}
	}
	return h.run(ctx, parser, r)
}

func (h *IngestHandler) run(ctx context.Context, parser parsers.Parser, r io.Reader) (*services.PipelineSummary, error) {
	preds, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	summary, err := h.pipeline.Run(ctx, preds)
	if err != nil {
		return summary, fmt.Errorf("running pipeline: %w", err)
	}
	return summary, nil
}

// HandleDirectory ingests all matching feed files in a directory, in name order.
func (h *IngestHandler) HandleDirectory(ctx context.Context, dirPath string, pattern string, recursive bool, progressFn func(file string)) (*IngestBatchResult, error) {
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("accessing path: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	files, err := h.findFiles(absPath, pattern, recursive)
	if err != nil {
		return nil, fmt.Errorf("finding files: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching pattern %q found in %s", pattern, absPath)
	}

	result := &IngestBatchResult{
		FileResults: make([]*IngestResult, 0, len(files)),
	}

	for _, file := range files {
		if progressFn != nil {
			progressFn(file)
		}

		fileResult, err := h.Handle(ctx, file, "")
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", file, err))
			continue
		}

		result.FileResults = append(result.FileResults, fileResult)
		result.TotalFiles++
		result.TotalAlerts += len(fileResult.Summary.Alerts)
		result.TotalActions += fileResult.Summary.ActionsProposed
	}

	return result, nil
}

// findFiles finds all files matching the pattern in the directory.
func (h *IngestHandler) findFiles(dirPath string, pattern string, recursive bool) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !recursive && path != dirPath {
				return filepath.SkipDir
			}
			return nil
		}

		matched, err := filepath.Match(pattern, info.Name())
		if err != nil {
			return err
		}

		if matched {
			files = append(files, path)
		}

		return nil
	}

	if err := filepath.Walk(dirPath, walkFn); err != nil {
		return nil, err
	}

	return files, nil
}

// IsDirectory checks if the given path is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsGlobPattern checks if the path contains glob characters.
func IsGlobPattern(path string) bool {
	return strings.ContainsAny(path, "*?[")
}
