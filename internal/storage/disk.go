package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Footprint is the on-disk size of each named store and their sum.
type Footprint struct {
	Stores map[string]int64
	Total  int64
}

// MeasureFootprint sizes each store path (a file, or a directory summed
// recursively). A SQLite database also counts its -wal and -shm sidecars.
// Empty and missing paths count as zero.
func MeasureFootprint(stores map[string]string) (*Footprint, error) {
	fp := &Footprint{Stores: make(map[string]int64, len(stores))}
	for name, path := range stores {
		n, err := pathSize(path)
		if err != nil {
			return nil, err
		}
		fp.Stores[name] = n
		fp.Total += n
	}
	return fp, nil
}

func pathSize(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		total := info.Size()
		for _, sidecar := range []string{path + "-wal", path + "-shm"} {
			if si, err := os.Stat(sidecar); err == nil {
				total += si.Size()
			}
		}
		return total, nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
