// Package download implements the download worker state machine
// (component D): acquire the partial file, stream the transfer through
// the checksum calculator, validate, and commit or retry.
package download

import (
	"context"
	"io"
	"time"

	"repoconnector/checksum"
	"repoconnector/internal"
	"repoconnector/partialfile"
	"repoconnector/spi"
)

// Request describes one artifact or metadata resource to fetch.
// ExistenceOnly skips the partial file, calculator and validator
// entirely — the worker only confirms the resource exists.
type Request struct {
	Coordinates   spi.Coordinates
	FinalPath     string
	ExistenceOnly bool
	Listener      spi.ProgressListener

	// Err is the batch result slot a Connector writes to after Run
	// returns, so callers read per-task outcomes off the requests
	// themselves rather than a separate results slice.
	Err error
}

// Options is a worker's construction-time wiring, shared across every
// request it runs.
type Options struct {
	Transporter     spi.Transporter
	Layout          spi.Layout
	Processor       spi.FileProcessor
	Provided        spi.ProvidedChecksumsSource
	Fetcher         checksum.Fetcher
	Policy          spi.ChecksumPolicy
	Algorithms      []spi.Algorithm
	Checker         spi.RemoteAccessChecker
	Resume          bool
	ResumeThreshold int64
	RequestTimeout  time.Duration
}

// Worker holds only read-only options, so one Worker may run several
// Requests at once; each Run call handles one Request, and Connector's
// pool calls Run concurrently on a single shared Worker.
type Worker struct {
	opts Options
}

func NewWorker(opts Options) *Worker {
	return &Worker{opts: opts}
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeTolerated
	outcomeRetryable
	outcomeResourceChanged
	outcomeFail
)

// Run executes the full state machine for req: at most one mandatory
// attempt and one retry, per spec.
func (w *Worker) Run(ctx context.Context, req *Request) error {
	location := w.opts.Layout.LocationFor(req.Coordinates)

	if req.ExistenceOnly {
		return w.opts.Transporter.Peek(ctx, location)
	}

	listener := req.Listener
	if listener == nil {
		listener = spi.NoopProgressListener{}
	}

	retryBudget := 1
	restartFromZero := false

	for {
		out, err := w.attempt(ctx, req, location, listener, restartFromZero, retryBudget > 0)
		switch out {
		case outcomeSuccess, outcomeTolerated:
			return nil
		case outcomeResourceChanged:
			restartFromZero = true
			continue
		case outcomeRetryable:
			if retryBudget <= 0 {
				return err
			}
			retryBudget--
			restartFromZero = false
			continue
		default:
			return err
		}
	}
}

func (w *Worker) attempt(ctx context.Context, req *Request, location string, listener spi.ProgressListener, restartFromZero, canRetry bool) (outcome, error) {
	resumeEnabled := w.opts.Resume && !restartFromZero

	pf, err := partialfile.New(ctx, req.FinalPath, resumeEnabled, w.opts.ResumeThreshold, w.opts.RequestTimeout, w.opts.Checker)
	if err != nil {
		return classify(err)
	}
	if pf == nil {
		// A concurrent downloader finished first; the final file is valid.
		return outcomeSuccess, nil
	}

	// restartFromZero forces resumeEnabled false above, so pf.IsResume()
	// is already false on that path; no separate zeroing needed here.
	offset := int64(0)
	if pf.IsResume() {
		offset = pf.Offset()
	}

	partFile, err := pf.Open()
	if err != nil {
		pf.Close(false)
		return classify(err)
	}

	calc := checksum.NewCalculator(pf.PartPath(), w.opts.Algorithms...)
	calc.Init(offset)

	dst := &digestingWriterAt{dst: partFile, calc: calc}
	getResult, err := w.opts.Transporter.Get(ctx, location, dst, offset, listener)
	partFile.Close()

	if err != nil {
		pf.Close(true)
		if internal.KindOf(err) == internal.ErrNotFound || internal.KindOf(err) == internal.ErrCancelled {
			return outcomeFail, err
		}
		ce, retryable := asRetryable(err)
		if retryable {
			return outcomeRetryable, ce
		}
		return outcomeFail, err
	}

	if getResult != nil && getResult.ResourceChanged && offset > 0 {
		pf.Close(false)
		return outcomeResourceChanged, nil
	}

	var included map[string]string
	if getResult != nil {
		included = getResult.InlinedChecksums
	}

	var provided map[string]string
	if w.opts.Provided != nil {
		provided = w.opts.Provided.ProvidedChecksums(location)
	}

	validator := checksum.NewValidator(checksum.Config{
		Algorithms: w.opts.Algorithms,
		Locations:  w.opts.Layout.ChecksumLocationsFor(location, w.opts.Algorithms),
		Policy:     w.opts.Policy,
		Provided:   provided,
		Fetcher:    w.opts.Fetcher,
		Processor:  w.opts.Processor,
		FinalPath:  req.FinalPath,
	})
	defer validator.Close()

	if verr := validator.Validate(ctx, calc.Get(), included); verr != nil {
		if validator.Handle(verr) {
			pf.Close(false)
			return outcomeTolerated, nil
		}
		pf.Close(false)
		if _, retryable := asRetryable(verr); !retryable {
			return outcomeFail, verr
		}
		if canRetry {
			validator.Retry()
		}
		return outcomeRetryable, verr
	}

	if err := pf.Commit(); err != nil {
		pf.Close(true)
		return outcomeFail, err
	}
	validator.Commit()
	pf.Close(true)
	return outcomeSuccess, nil
}

func classify(err error) (outcome, error) {
	switch internal.KindOf(err) {
	case internal.ErrNotFound, internal.ErrCancelled:
		return outcomeFail, err
	case internal.ErrTransfer, internal.ErrLockTimeout:
		return outcomeRetryable, err
	default:
		return outcomeFail, err
	}
}

func asRetryable(err error) (error, bool) {
	if ce, ok := err.(*internal.ConnectorError); ok {
		return ce, ce.Retryable()
	}
	return err, true
}

// digestingWriterAt feeds every WriteAt call's bytes into the calculator
// before passing them through. It relies on the transporter writing a
// single sequential stream starting at the resume offset — true for
// every Transporter in this module's scope, since Get makes exactly one
// request per attempt.
type digestingWriterAt struct {
	dst  io.WriterAt
	calc *checksum.Calculator
}

func (d *digestingWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n, err := d.dst.WriteAt(p, off)
	if n > 0 {
		d.calc.Update(p[:n])
	}
	return n, err
}
