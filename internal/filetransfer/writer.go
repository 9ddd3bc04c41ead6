// Package filetransfer assembles server-pushed files on durable storage.
// Incoming bytes go to a staging file next to the target; the target path is
// only ever produced by an atomic rename after size and checksum verify, so a
// reader never observes a partial file.
package filetransfer

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// StagingSuffix is appended to the target path while a transfer is in flight.
const StagingSuffix = ".new"

var (
	ErrSizeMismatch     = errors.New("filetransfer: written size does not match declared size")
	ErrChecksumMismatch = errors.New("filetransfer: checksum does not match declared digest")
)

// Writer is one file-transfer session. One session is active at a time;
// creating a new Writer implicitly abandons any prior incomplete session.
// Not safe for concurrent use.
type Writer struct {
	path        string
	stagingPath string
	size        int64
	digest      string

	file    *os.File
	hash    hash.Hash
	written int64
}

// NewWriter prepares a session for filename under root with the declared
// total size and md5 hex digest. Nothing touches the filesystem until the
// first Write.
func NewWriter(root, filename string, size int64, digest string) *Writer {
	path := filepath.Join(root, filename)
	return &Writer{
		path:        path,
		stagingPath: path + StagingSuffix,
		size:        size,
		digest:      digest,
	}
}

// Path returns the target path for this session.
func (w *Writer) Path() string { return w.path }

// Position returns the number of bytes written so far.
func (w *Writer) Position() int64 { return w.written }

func (w *Writer) open() error {
	f, err := os.OpenFile(w.stagingPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.hash = md5.New()
	w.written = 0
	return nil
}

// Write appends data to the staging file and feeds the running checksum. The
// staging file is opened lazily on the first chunk.
func (w *Writer) Write(data []byte) error {
	if w.file == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	if _, err := w.file.Write(data); err != nil {
		return err
	}
	w.hash.Write(data)
	w.written += int64(len(data))
	return nil
}

// Commit verifies size and checksum, then renames the staging file onto the
// target path. Any mismatch aborts the session: the staging file is removed
// and the target path is left untouched.
func (w *Writer) Commit() error {
	if w.written != w.size {
		err := fmt.Errorf("%w: wrote %d, declared %d", ErrSizeMismatch, w.written, w.size)
		log.Warn().Str("path", w.path).Err(err).Msg("uplink: file transfer aborted")
		w.Abort()
		return err
	}
	got := hex.EncodeToString(w.hash.Sum(nil))
	if got != w.digest {
		err := fmt.Errorf("%w: got %s, declared %s", ErrChecksumMismatch, got, w.digest)
		log.Warn().Str("path", w.path).Err(err).Msg("uplink: file transfer aborted")
		w.Abort()
		return err
	}
	if err := w.file.Close(); err != nil {
		w.file = nil
		_ = os.Remove(w.stagingPath)
		return err
	}
	w.file = nil
	if err := os.Rename(w.stagingPath, w.path); err != nil {
		_ = os.Remove(w.stagingPath)
		return err
	}
	log.Info().Str("path", w.path).Int64("bytes", w.written).Msg("uplink: file transfer committed")
	return nil
}

// Abort closes and removes the staging file. Safe to call when no file is
// open, and safe to call repeatedly.
func (w *Writer) Abort() {
	if w.file == nil {
		return
	}
	_ = w.file.Close()
	w.file = nil
	_ = os.Remove(w.stagingPath)
}
