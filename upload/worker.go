// Package upload implements the upload worker (component E): no retry,
// no validation — compute digests once, put the artifact, then put a
// sidecar per algorithm, tolerating individual sidecar failures.
package upload

import (
	"context"
	"io"
	"os"
	"strings"

	"repoconnector/checksum"
	"repoconnector/internal"
	"repoconnector/spi"
)

// Request describes one artifact to upload from a local file.
type Request struct {
	Coordinates spi.Coordinates
	SourcePath  string
	Listener    spi.ProgressListener

	// Err is the batch result slot; see download.Request.Err.
	Err error
}

type Options struct {
	Transporter spi.Transporter
	Layout      spi.Layout
	Algorithms  []spi.Algorithm
}

type Worker struct {
	opts Options
}

func NewWorker(opts Options) *Worker {
	return &Worker{opts: opts}
}

func (w *Worker) Run(ctx context.Context, req *Request) error {
	location := w.opts.Layout.LocationFor(req.Coordinates)

	f, err := os.Open(req.SourcePath)
	if err != nil {
		return internal.Wrap(internal.ErrTransfer, "opening upload source", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return internal.Wrap(internal.ErrTransfer, "statting upload source", err)
	}

	calc := checksum.NewCalculator(req.SourcePath, w.opts.Algorithms...)
	calc.Init(0)
	if err := digestFile(f, calc); err != nil {
		return internal.Wrap(internal.ErrTransfer, "digesting upload source", err)
	}

	listener := req.Listener
	if listener == nil {
		listener = spi.NoopProgressListener{}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return internal.Wrap(internal.ErrTransfer, "rewinding upload source", err)
	}
	if err := w.opts.Transporter.Put(ctx, location, f, info.Size(), listener); err != nil {
		return err
	}

	for name, result := range calc.Get() {
		if result.Err != nil {
			internal.GetLogger().Warn("skipping sidecar upload for %s: digest unavailable: %v", name, result.Err)
			continue
		}
		algo := algorithmByName(w.opts.Algorithms, name)
		if algo.Name == "" {
			continue
		}
		sidecarLocation := location + "." + algo.Extension
		hexReader := strings.NewReader(result.Hex)
		if err := w.opts.Transporter.Put(ctx, sidecarLocation, hexReader, int64(len(result.Hex)), spi.NoopProgressListener{}); err != nil {
			internal.GetLogger().Warn("sidecar upload failed for %s: %v", sidecarLocation, err)
		}
	}

	return nil
}

func digestFile(f *os.File, calc *checksum.Calculator) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			calc.Update(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func algorithmByName(algos []spi.Algorithm, name string) spi.Algorithm {
	for _, a := range algos {
		if a.Name == name {
			return a
		}
	}
	return spi.Algorithm{}
}
