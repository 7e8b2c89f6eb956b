package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"repoconnector/spi"
)

// Result is one algorithm's outcome from Calculator.Get: either a lower-hex
// digest string, or the error that made that digest unusable. Errors are
// per-algorithm so one corrupt or unsupported algorithm never masks the
// others (spec invariant: algorithm independence).
type Result struct {
	Hex string
	Err error
}

type digestState struct {
	algo spi.Algorithm
	hash spi.HashState
	err  error
}

// Calculator streams bytes through N digest algorithms in one pass,
// supporting a starting data offset for resumed downloads by priming each
// digest from bytes already on disk in the part file.
type Calculator struct {
	partPath string
	digests  []*digestState
}

// NewCalculator builds a calculator for algorithms, duplicate-suppressed
// by name. partPath is the `.part` file Init reads from when data_offset
// is non-zero.
func NewCalculator(partPath string, algorithms ...spi.Algorithm) *Calculator {
	deduped := DedupeAlgorithms(algorithms)
	digests := make([]*digestState, len(deduped))
	for i, a := range deduped {
		digests[i] = &digestState{algo: a}
	}
	return &Calculator{partPath: partPath, digests: digests}
}

// Init resets every digest to its initial state. If dataOffset > 0 it
// opens the part file and feeds exactly that many bytes into every
// digest; if the file is shorter than dataOffset, every digest is left in
// an error state and Init still returns normally — the download then
// fails softly at Get().
func (c *Calculator) Init(dataOffset int64) {
	for _, d := range c.digests {
		d.hash = d.algo.New()
		d.err = nil
	}
	if dataOffset <= 0 {
		return
	}

	f, err := os.Open(c.partPath)
	if err != nil {
		c.setAllErr(fmt.Errorf("opening part file for resume priming: %w", err))
		return
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	var fed int64
	for fed < dataOffset {
		want := int64(len(buf))
		if remaining := dataOffset - fed; remaining < want {
			want = remaining
		}
		n, rerr := f.Read(buf[:want])
		if n > 0 {
			c.Update(buf[:n])
			fed += int64(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				if fed < dataOffset {
					c.setAllErr(fmt.Errorf("part file shorter than resume offset: have %d bytes, need %d", fed, dataOffset))
				}
				return
			}
			c.setAllErr(fmt.Errorf("reading part file during resume priming: %w", rerr))
			return
		}
	}
}

// Update feeds all bytes in buffer to every live digest; digests already
// in an error state are skipped. The caller's buffer is only read, never
// retained or mutated, so it may be reused or fed to other digests.
func (c *Calculator) Update(buf []byte) {
	for _, d := range c.digests {
		if d.err != nil {
			continue
		}
		if _, err := d.hash.Write(buf); err != nil {
			d.err = err
		}
	}
}

// Get finalizes each digest and returns a name -> Result mapping.
func (c *Calculator) Get() map[string]Result {
	out := make(map[string]Result, len(c.digests))
	for _, d := range c.digests {
		if d.err != nil {
			out[d.algo.Name] = Result{Err: d.err}
			continue
		}
		out[d.algo.Name] = Result{Hex: hex.EncodeToString(d.hash.Sum(nil))}
	}
	return out
}

func (c *Calculator) setAllErr(err error) {
	for _, d := range c.digests {
		d.err = err
	}
}
