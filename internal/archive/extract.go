// Package archive extracts the JSON member from commentary ZIP archives.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoJSONMember is returned when the archive has no member with a
// recognized data-file suffix.
var ErrNoJSONMember = errors.New("archive contains no JSON member")

const dataSuffix = ".json"

// copyBufSize bounds memory while decompressing; members are never
// materialized in full.
const copyBufSize = 32 * 1024

// ExtractJSON locates the member of the ZIP at archivePath whose name ends
// in ".json" and streams its decompressed bytes to dstPath through a fixed
// buffer. On any failure dstPath is removed, never left partially written.
func ExtractJSON(archivePath, dstPath string) error {
	if err := extractJSON(archivePath, dstPath); err != nil {
		_ = os.Remove(dstPath)
		return err
	}
	return nil
}

func extractJSON(archivePath, dstPath string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	member := findDataMember(&zr.Reader)
	if member == nil {
		return ErrNoJSONMember
	}

	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer rc.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}
	defer dst.Close()

	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(dst, rc, buf); err != nil {
		return fmt.Errorf("extract %s: %w", member.Name, err)
	}
	return dst.Sync()
}

// findDataMember returns the first regular member ending in the data suffix.
// macOS resource-fork entries are ignored.
func findDataMember(zr *zip.Reader) *zip.File {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), dataSuffix) {
			return f
		}
	}
	return nil
}
