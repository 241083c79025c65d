package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/litindex/internal/models"
	"go.etcd.io/bbolt"
)

var (
	bucketChunks    = []byte("chunks")
	bucketVectors   = []byte("vectors")
	bucketDocChunks = []byte("doc_chunks")
	bucketMeta      = []byte("meta")
	keyDimensions   = []byte("dimensions")
)

// BoltStore persists records in a bbolt file and mirrors them in a
// MemoryStore for search. Each write is one bbolt transaction; the mirror is
// updated after commit while writers are serialized, so a reader sees either
// the old or the new chunk set of a document.
type BoltStore struct {
	db      *bbolt.DB
	mem     *MemoryStore
	writeMu sync.Mutex
}

// OpenBoltStore opens (or creates) dir/chunks.db and loads it into memory.
// An existing file built for another dimension is rejected.
func OpenBoltStore(dir string, dimensions int) (*BoltStore, error) {
	mem, err := NewMemoryStore(dimensions)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	db, err := bbolt.Open(filepath.Join(dir, "chunks.db"), 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	s := &BoltStore{db: db, mem: mem}
	if err := s.init(dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) init(dimensions int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketChunks, bucketVectors, bucketDocChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if raw := meta.Get(keyDimensions); raw != nil {
			if got := int(binary.LittleEndian.Uint32(raw)); got != dimensions {
				return fmt.Errorf("dimension mismatch: store has %d, embedder produces %d", got, dimensions)
			}
			return nil
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(dimensions))
		return meta.Put(keyDimensions, buf)
	})
}

func (s *BoltStore) load() error {
	var records []*models.ChunkRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		vectors := tx.Bucket(bucketVectors)
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var r models.ChunkRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode chunk %s: %w", k, err)
			}
			raw := vectors.Get(k)
			if raw == nil {
				// A payload without its vector is never searchable.
				return nil
			}
			r.Vector = bytesToFloat32Slice(raw)
			records = append(records, &r)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("load vector store: %w", err)
	}
	prepared, err := prepareRecords(s.mem.dimensions, "", records)
	if err != nil {
		return fmt.Errorf("load vector store: %w", err)
	}
	s.mem.put(prepared)
	return nil
}

// Upsert writes records in one transaction, then publishes them.
func (s *BoltStore) Upsert(ctx context.Context, records ...*models.ChunkRecord) error {
	prepared, err := prepareRecords(s.mem.dimensions, "", records)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err = s.db.Update(func(tx *bbolt.Tx) error {
		for _, r := range prepared {
			if old, err := s.mem.Get(ctx, r.ChunkID); err == nil && old.DocumentID != r.DocumentID {
				if err := tx.Bucket(bucketDocChunks).Delete(docChunkKey(old.DocumentID, r.ChunkID)); err != nil {
					return err
				}
			}
			if err := putRecord(tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	s.mem.mu.Lock()
	s.mem.put(prepared)
	s.mem.mu.Unlock()
	return nil
}

// ReplaceDocument deletes docID's chunks and writes records in one transaction.
func (s *BoltStore) ReplaceDocument(ctx context.Context, docID string, records []*models.ChunkRecord) error {
	prepared, err := prepareRecords(s.mem.dimensions, docID, records)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := deleteDocument(tx, docID); err != nil {
			return err
		}
		for _, r := range prepared {
			if err := putRecord(tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace chunks of %s: %w", docID, err)
	}
	s.mem.mu.Lock()
	s.mem.remove(docID)
	s.mem.put(prepared)
	s.mem.mu.Unlock()
	return nil
}

// Delete removes docID's chunks.
func (s *BoltStore) Delete(ctx context.Context, docID string) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		n, err = deleteDocument(tx, docID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", docID, err)
	}
	s.mem.mu.Lock()
	s.mem.remove(docID)
	s.mem.mu.Unlock()
	return n, nil
}

// Search delegates to the in-memory mirror.
func (s *BoltStore) Search(ctx context.Context, query []float32, k int, filter models.QueryFilter) ([]models.ScoredChunk, error) {
	return s.mem.Search(ctx, query, k, filter)
}

// Get returns the record for chunkID.
func (s *BoltStore) Get(ctx context.Context, chunkID string) (*models.ChunkRecord, error) {
	return s.mem.Get(ctx, chunkID)
}

// DocumentChunks returns docID's records ordered by sequence.
func (s *BoltStore) DocumentChunks(ctx context.Context, docID string) ([]*models.ChunkRecord, error) {
	return s.mem.DocumentChunks(ctx, docID)
}

// Dimensions returns the vector dimension.
func (s *BoltStore) Dimensions() int { return s.mem.Dimensions() }

// Size returns the number of stored chunks.
func (s *BoltStore) Size() int { return s.mem.Size() }

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putRecord(tx *bbolt.Tx, r *models.ChunkRecord) error {
	payload := *r
	payload.Vector = nil
	data, err := json.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("encode chunk %s: %w", r.ChunkID, err)
	}
	key := []byte(r.ChunkID)
	if err := tx.Bucket(bucketChunks).Put(key, data); err != nil {
		return err
	}
	if err := tx.Bucket(bucketVectors).Put(key, float32SliceToBytes(r.Vector)); err != nil {
		return err
	}
	return tx.Bucket(bucketDocChunks).Put(docChunkKey(r.DocumentID, r.ChunkID), []byte{})
}

func deleteDocument(tx *bbolt.Tx, docID string) (int, error) {
	prefix := docChunkKey(docID, "")
	index := tx.Bucket(bucketDocChunks)
	var keys [][]byte
	c := index.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		chunkID := k[len(prefix):]
		if err := tx.Bucket(bucketChunks).Delete(chunkID); err != nil {
			return 0, err
		}
		if err := tx.Bucket(bucketVectors).Delete(chunkID); err != nil {
			return 0, err
		}
		if err := index.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// docChunkKey is docID, a NUL separator, then chunkID; a prefix scan over
// docID+NUL lists the document's chunks.
func docChunkKey(docID, chunkID string) []byte {
	k := make([]byte, 0, len(docID)+1+len(chunkID))
	k = append(k, docID...)
	k = append(k, 0)
	return append(k, chunkID...)
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
