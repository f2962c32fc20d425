package storage

import (
	"os"
	"path/filepath"
)

// DiskUsageBytes sums the on-disk size of the given paths. Status reporting
// passes the SQLite database path and the bleve index directory, so each
// path may be a plain file or a directory that is summed recursively. The
// store runs SQLite in WAL mode, so a file path also counts its -wal and
// -shm siblings when present. Paths that do not exist yet (a fresh install
// before the first ingest) contribute zero; other stat or walk errors are
// returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
			for _, suffix := range []string{"-wal", "-shm"} {
				if sib, err := os.Stat(p + suffix); err == nil && !sib.IsDir() {
					total += sib.Size()
				}
			}
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
