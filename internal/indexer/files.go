package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/hyperjump/litindex/internal/fileid"
	"github.com/hyperjump/litindex/internal/models"
	"go.uber.org/zap"
)

const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
	metaKeyFileType    = "file_type"
)

// ProgressFunc is called after each file of a directory run.
type ProgressFunc func(done, total int, path string)

// DecodeDocuments reads annotated documents in any of three layouts: a
// single object, an array, or {"documents": [...]}.
func DecodeDocuments(r io.Reader) ([]*models.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document file", models.ErrMalformedInput)
	}
	var docs []*models.Document
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrMalformedInput, err)
		}
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrMalformedInput, err)
		}
		if list, ok := probe["documents"]; ok && probe["id"] == nil {
			if err := json.Unmarshal(list, &docs); err != nil {
				return nil, fmt.Errorf("%w: documents: %w", models.ErrMalformedInput, err)
			}
			break
		}
		var doc models.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrMalformedInput, err)
		}
		docs = []*models.Document{&doc}
	default:
		return nil, fmt.Errorf("%w: expected a JSON object or array", models.ErrMalformedInput)
	}
	return docs, nil
}

// IndexFile indexes one file. JSON files hold annotated documents; any other
// allowed extension is extracted to text and indexed as an internal_file
// document whose ID derives from the absolute path. Internal files whose
// mtime and size match the indexed version are reported as unchanged.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (*Report, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !extensionAllowed(ext, idx.extensions) {
		return nil, fmt.Errorf("%w: extension %q not in allowed list", models.ErrMalformedInput, ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", models.ErrMalformedInput, absPath)
	}
	idx.logger.Debug("Indexing file", zap.String("path", absPath))

	if ext == ".json" {
		f, err := os.Open(absPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		docs, err := DecodeDocuments(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", absPath, err)
		}
		for _, d := range docs {
			if d != nil && d.SourcePath == "" {
				d.SourcePath = absPath
			}
		}
		return idx.IndexDocuments(ctx, docs)
	}

	docID := fileid.DocumentID(absPath)
	if idx.unchanged(ctx, docID, absPath, info) {
		idx.logger.Debug("Skipping unchanged file", zap.String("path", absPath))
		return &Report{Unchanged: []string{docID}}, nil
	}
	extracted, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	doc := &models.Document{
		ID:         docID,
		Source:     models.SourceInternalFile,
		Name:       filepath.Base(absPath),
		Type:       extracted.FileType,
		SourcePath: absPath,
		SizeBytes:  info.Size(),
		Text:       extracted.Text,
		// mtime is kept as a string: UnixNano exceeds float64 precision in JSON.
		Metadata: models.NewSourceMetadata(map[string]interface{}{
			"title":            filepath.Base(absPath),
			metaKeySourcePath:  absPath,
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
			metaKeyFileType:    extracted.FileType,
		}),
	}
	return idx.IndexDocuments(ctx, []*models.Document{doc})
}

func (idx *Indexer) unchanged(ctx context.Context, docID, absPath string, info os.FileInfo) bool {
	doc, err := idx.catalog.GetDocument(ctx, docID)
	if err != nil {
		return false
	}
	if doc.SourcePath != absPath {
		return false
	}
	return metadataInt64(doc.Metadata, metaKeySourceMtime) == info.ModTime().UnixNano() &&
		metadataInt64(doc.Metadata, metaKeySourceSize) == info.Size()
}

func metadataInt64(m models.SourceMetadata, key string) int64 {
	v, ok := m.Get(key)
	if !ok {
		return -1
	}
	switch n := v.(type) {
	case string:
		x, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return -1
		}
		return x
	default:
		f, ok := models.ToFloat(v)
		if !ok {
			return -1
		}
		return int64(f)
	}
}

// RemoveFile deletes every document ingested from path. Missing documents
// are not an error.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	ids, err := idx.catalog.DocumentIDsBySourcePath(ctx, absPath)
	if err != nil {
		return 0, fmt.Errorf("catalog: %w", err)
	}
	if fid := fileid.DocumentID(absPath); !slices.Contains(ids, fid) {
		ids = append(ids, fid)
	}
	removed := 0
	for _, id := range ids {
		switch err := idx.DeleteDocument(ctx, id); {
		case err == nil:
			removed++
		case errors.Is(err, models.ErrNotFound):
		default:
			return removed, err
		}
	}
	idx.logger.Debug("File removed", zap.String("path", absPath), zap.Int("documents", removed))
	return removed, nil
}

// IndexDirectory walks dir recursively and indexes every regular file with
// an allowed extension. A file that fails is recorded and the walk goes on.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, progress ProgressFunc) (*Report, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var files []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !extensionAllowed(filepath.Ext(path), idx.extensions) {
			return nil
		}
		// Follow symlinks; only regular targets are indexed.
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r, err := idx.IndexFile(ctx, path)
		if err != nil {
			idx.logger.Warn("Failed to index file", zap.String("path", path), zap.Error(err))
			report.skip(fileid.DocumentID(path), err)
		}
		report.Merge(r)
		if progress != nil {
			progress(i+1, len(files), path)
		}
	}
	return report, ctx.Err()
}

// Extensions returns the allowed file extensions.
func (idx *Indexer) Extensions() []string {
	return idx.extensions
}

func extensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	want := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == want {
			return true
		}
	}
	return false
}
