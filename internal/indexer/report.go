package indexer

import (
	"errors"
)

// ErrSuperseded marks a document dropped because a later copy with the same
// ID arrived in the same batch.
var ErrSuperseded = errors.New("superseded")

// Failure describes one skipped document or chunk.
type Failure struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id,omitempty"`
	Sequence   int    `json:"sequence,omitempty"`
	Reason     string `json:"reason"`
	Err        error  `json:"-"`
}

// Report summarizes an indexing run.
type Report struct {
	Indexed      []string  `json:"indexed"`
	Unchanged    []string  `json:"unchanged,omitempty"`
	Chunks       int       `json:"chunks"`
	Skipped      []Failure `json:"skipped,omitempty"`
	FailedChunks []Failure `json:"failed_chunks,omitempty"`
}

func (r *Report) skip(docID string, err error) {
	r.Skipped = append(r.Skipped, Failure{DocumentID: docID, Reason: err.Error(), Err: err})
}

// Merge appends o to r.
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	r.Indexed = append(r.Indexed, o.Indexed...)
	r.Unchanged = append(r.Unchanged, o.Unchanged...)
	r.Chunks += o.Chunks
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.FailedChunks = append(r.FailedChunks, o.FailedChunks...)
}

// Err joins the errors of every skipped document, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Skipped))
	for _, f := range r.Skipped {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}
