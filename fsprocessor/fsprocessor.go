// Package fsprocessor is the default spi.FileProcessor: small checksum
// sidecar files written via a scratch-temp-file-then-rename sequence so
// a reader never observes a partially written sidecar.
package fsprocessor

import (
	"os"
	"path/filepath"

	"repoconnector/internal"
)

type Processor struct{}

func New() Processor { return Processor{} }

func (Processor) Write(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internal.Wrap(internal.ErrTransfer, "creating sidecar directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+"-*.tmp")
	if err != nil {
		return internal.Wrap(internal.ErrTransfer, "creating sidecar scratch file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return internal.Wrap(internal.ErrTransfer, "writing sidecar scratch file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return internal.Wrap(internal.ErrTransfer, "closing sidecar scratch file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return internal.Wrap(internal.ErrTransfer, "renaming sidecar into place", err)
	}
	return nil
}

func (Processor) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return internal.Wrap(internal.ErrTransfer, "deleting sidecar", err)
	}
	return nil
}
