// Package fileid derives stable document IDs for internal files from their paths.
package fileid

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Prefix marks document IDs that were derived from a file path.
const Prefix = "file:"

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("litindex:internal_file"))

// DocumentID returns the document ID for the file at path. The same cleaned
// path always yields the same ID, so re-indexing a file supersedes its
// previous version and removing it can find what to delete.
func DocumentID(path string) string {
	return Prefix + uuid.NewSHA1(namespace, []byte(filepath.Clean(path))).String()
}

// IsFileID reports whether id was produced by DocumentID.
func IsFileID(id string) bool {
	return strings.HasPrefix(id, Prefix)
}
