// Package checksum implements the calculator (component A) and validator
// (component C): streaming multi-algorithm digesting with resume support,
// and policy-governed comparison against provided, inlined, and
// externally-fetched expected values.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"

	"repoconnector/spi"
)

// The teacher never verifies a checksum locally — its Checksum fields are
// server-supplied strings it only displays. No third-party digest library
// appears in any example repo's go.mod either, so crypto/sha1,
// crypto/sha256, crypto/sha512 and crypto/md5 stay as the one
// intentionally standard-library piece of this package (see DESIGN.md).

var (
	SHA1 = spi.Algorithm{Name: "SHA-1", Extension: "sha1", New: func() spi.HashState { return sha1.New() }}

	SHA256 = spi.Algorithm{Name: "SHA-256", Extension: "sha256", New: func() spi.HashState { return sha256.New() }}

	SHA512 = spi.Algorithm{Name: "SHA-512", Extension: "sha512", New: func() spi.HashState { return sha512.New() }}

	MD5 = spi.Algorithm{Name: "MD5", Extension: "md5", New: func() spi.HashState { return md5.New() }}
)

// StandardAlgorithms returns the four well-known algorithms in the
// canonical order most repository layouts configure them.
func StandardAlgorithms() []spi.Algorithm {
	return []spi.Algorithm{SHA1, MD5, SHA256, SHA512}
}

// DedupeAlgorithms suppresses duplicate algorithms by name, preserving
// first-seen order — the calculator's construction-time invariant.
func DedupeAlgorithms(algos []spi.Algorithm) []spi.Algorithm {
	seen := make(map[string]bool, len(algos))
	out := make([]spi.Algorithm, 0, len(algos))
	for _, a := range algos {
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		out = append(out, a)
	}
	return out
}
