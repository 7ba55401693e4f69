package index

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint is the lower-case hex digest of an artifact's encoded bytes.
// The empty value means "absent".
type Fingerprint string

// Algorithm names a fingerprint hash.
type Algorithm string

const (
	AlgorithmBLAKE3 Algorithm = "blake3"
	AlgorithmSHA256 Algorithm = "sha256"
	// AlgorithmMD5 matches mirrors whose ETag was the MD5 of the body.
	AlgorithmMD5 Algorithm = "md5"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = AlgorithmBLAKE3

// Fingerprinter hashes encoded artifacts. The zero value uses
// DefaultAlgorithm.
type Fingerprinter struct {
	algorithm Algorithm
}

// NewFingerprinter returns a Fingerprinter for the named algorithm. An empty
// name selects DefaultAlgorithm.
func NewFingerprinter(name string) (Fingerprinter, error) {
	algo := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if algo == "" {
		algo = DefaultAlgorithm
	}
	switch algo {
	case AlgorithmBLAKE3, AlgorithmSHA256, AlgorithmMD5:
		return Fingerprinter{algorithm: algo}, nil
	default:
		return Fingerprinter{}, fmt.Errorf("fingerprint algorithm %q: %w", name, ErrUnknownFormat)
	}
}

// Algorithm reports the configured hash.
func (f Fingerprinter) Algorithm() Algorithm {
	if f.algorithm == "" {
		return DefaultAlgorithm
	}
	return f.algorithm
}

// Sum fingerprints the exact bytes given.
func (f Fingerprinter) Sum(data []byte) Fingerprint {
	h := f.newHash()
	h.Write(data)
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func (f Fingerprinter) newHash() hash.Hash {
	switch f.Algorithm() {
	case AlgorithmSHA256:
		return sha256.New()
	case AlgorithmMD5:
		return md5.New()
	default:
		return blake3.New()
	}
}
