package filetransfer

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
)

// Probe returns the size and md5 hex digest of filename under root, streaming
// the file through the hash rather than loading it. A missing or unreadable
// file returns the error from the filesystem; callers translate that into a
// null reply rather than failing.
func Probe(root, filename string) (int64, string, error) {
	path := filepath.Join(root, filename)
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := md5.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}
