// Package partialfile manages the `.part` scratch file and its co-located
// `.lock` file that coordinate resumable downloads across processes —
// component B of the connector.
package partialfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"repoconnector/internal"
	"repoconnector/spi"
)

const (
	lockPollInterval   = 100 * time.Millisecond
	minStalenessWindow = 3 * time.Second
	mtimeGrace         = 100 * time.Millisecond
)

// PartialFile is one download's exclusive ownership of a `.part` file. A
// nil *PartialFile and nil error together mean "a concurrent downloader
// just finished — re-read the final file instead of transferring."
type PartialFile struct {
	finalPath string
	partPath  string
	lockPath  string
	lockFile  *os.File
	resume    bool
	tempMode  bool
}

// New opens (or waits to open) a partial-file session for finalPath. With
// resumeEnabled false it uses a unique temp file beside finalPath and no
// lock; with resumeEnabled true it uses finalPath+".part" guarded by a
// lock on finalPath+".part.lock".
func New(ctx context.Context, finalPath string, resumeEnabled bool, resumeThreshold int64, requestTimeout time.Duration, checker spi.RemoteAccessChecker) (*PartialFile, error) {
	if !resumeEnabled {
		return newNonResumable(finalPath)
	}
	return newResumable(ctx, finalPath, resumeThreshold, requestTimeout, checker)
}

func newNonResumable(finalPath string) (*PartialFile, error) {
	f, err := os.CreateTemp(filepath.Dir(finalPath), filepath.Base(finalPath)+"-*.tmp")
	if err != nil {
		return nil, internal.Wrap(internal.ErrTransfer, "creating non-resumable scratch file", err)
	}
	path := f.Name()
	f.Close()
	return &PartialFile{finalPath: finalPath, partPath: path, tempMode: true}, nil
}

func newResumable(ctx context.Context, finalPath string, resumeThreshold int64, requestTimeout time.Duration, checker spi.RemoteAccessChecker) (*PartialFile, error) {
	partPath := finalPath + ".part"
	lockPath := partPath + ".lock"

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, internal.Wrap(internal.ErrTransfer, "opening lock file", err)
	}

	staleness := requestTimeout
	if staleness < minStalenessWindow {
		staleness = minStalenessWindow
	}

	var (
		concurrent bool
		waitStart  time.Time
		staleSince time.Time
		lastLen    = int64(-1)
	)

	for {
		flockErr := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if flockErr == nil {
			break
		}
		if !errors.Is(flockErr, syscall.EWOULDBLOCK) && !errors.Is(flockErr, syscall.EAGAIN) {
			lockFile.Close()
			return nil, internal.Wrap(internal.ErrTransfer, "acquiring partial-file lock", flockErr)
		}

		if !concurrent {
			concurrent = true
			waitStart = time.Now()
			staleSince = waitStart
			if checker != nil {
				if cerr := checker.Check(ctx); cerr != nil {
					lockFile.Close()
					return nil, internal.Wrap(internal.ErrTransfer, "remote access check failed while a concurrent downloader holds the lock", cerr)
				}
			}
		}

		curLen := fileLen(partPath)
		if curLen != lastLen {
			lastLen = curLen
			staleSince = time.Now()
		} else if requestTimeout > 0 && time.Since(staleSince) >= staleness {
			lockFile.Close()
			return nil, internal.New(internal.ErrLockTimeout, "timed out waiting for the partial-file lock")
		}

		select {
		case <-ctx.Done():
			lockFile.Close()
			return nil, internal.Wrap(internal.ErrCancelled, "partial-file lock wait cancelled", ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}

	if concurrent {
		if info, serr := os.Stat(finalPath); serr == nil {
			if !info.ModTime().Before(waitStart.Add(-mtimeGrace)) {
				syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
				lockFile.Close()
				removeLockBestEffort(lockPath)
				return nil, nil
			}
		}
	}

	partFile, err := os.OpenFile(partPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
		return nil, internal.Wrap(internal.ErrTransfer, "creating part file", err)
	}
	partFile.Close()

	return &PartialFile{
		finalPath: finalPath,
		partPath:  partPath,
		lockPath:  lockPath,
		lockFile:  lockFile,
		resume:    fileLen(partPath) >= resumeThreshold,
	}, nil
}

// IsResume reports whether the part file already holds at least
// resumeThreshold bytes of a prior attempt.
func (p *PartialFile) IsResume() bool { return p.resume }

// PartPath is the `.part` scratch file's path (or the unique temp file's
// path when resume is disabled).
func (p *PartialFile) PartPath() string { return p.partPath }

// Offset is the number of bytes currently on disk in the part file,
// with no threshold applied. Callers that want a genuine resume offset
// must gate this on IsResume() themselves; Offset alone does not say
// whether that many bytes are enough to trust as a resume point.
func (p *PartialFile) Offset() int64 {
	if p.tempMode {
		return 0
	}
	return fileLen(p.partPath)
}

// Open opens the part file for read-write, positioned for a caller that
// writes via io.WriterAt at Offset().
func (p *PartialFile) Open() (*os.File, error) {
	f, err := os.OpenFile(p.partPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, internal.Wrap(internal.ErrTransfer, "opening part file", err)
	}
	return f, nil
}

// Commit atomically renames the part file onto the final path. Callers
// invoke this only after the calculator and validator have both
// succeeded.
func (p *PartialFile) Commit() error {
	if err := os.Rename(p.partPath, p.finalPath); err != nil {
		return internal.Wrap(internal.ErrTransfer, "renaming part file to final path", err)
	}
	return nil
}

// Close releases the lock and cleans up. keepPart controls whether the
// `.part` file itself survives for a future resume; the `.lock` file is
// always removed on a best-effort basis. Idempotent.
func (p *PartialFile) Close(keepPart bool) error {
	if p.tempMode {
		if err := os.Remove(p.partPath); err != nil && !os.IsNotExist(err) {
			return internal.Wrap(internal.ErrTransfer, "removing non-resumable scratch file", err)
		}
		return nil
	}

	if p.lockFile != nil {
		syscall.Flock(int(p.lockFile.Fd()), syscall.LOCK_UN)
		p.lockFile.Close()
		p.lockFile = nil
	}
	removeLockBestEffort(p.lockPath)

	if !keepPart {
		if err := os.Remove(p.partPath); err != nil && !os.IsNotExist(err) {
			return internal.Wrap(internal.ErrTransfer, "removing part file", err)
		}
	}
	return nil
}

func fileLen(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// removeLockBestEffort deletes the lock file, logging a warning rather
// than failing when removal doesn't succeed. A lock file that cannot be
// removed stays on disk: there is no later or at-exit removal attempt.
func removeLockBestEffort(lockPath string) {
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		internal.GetLogger().Warn("failed to remove lock file %s, will not retry: %v", lockPath, err)
	}
}
