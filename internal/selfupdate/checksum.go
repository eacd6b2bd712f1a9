package selfupdate

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	SHA512     Algorithm = "sha512"
	BLAKE2b512 Algorithm = "blake2b-512"
)

// AlgorithmFor guesses the digest from the manifest name (SHA256SUMS,
// SHA512SUMS, B2SUMS).
func AlgorithmFor(manifestName string) Algorithm {
	n := strings.ToUpper(manifestName)
	switch {
	case strings.Contains(n, "SHA512"):
		return SHA512
	case strings.HasPrefix(n, "B2") || strings.Contains(n, "BLAKE2"):
		return BLAKE2b512
	default:
		return SHA256
	}
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE2b512:
		return blake2b.New512(nil)
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}

// FileDigest returns the lowercase hex digest of the file at path.
func FileDigest(path string, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LookupDigest finds the manifest entry for fileName. Entries use the
// coreutils layout "<digest>  <name>", optionally with a "*" binary marker
// or a leading directory.
func LookupDigest(manifest []byte, fileName string) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(manifest))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		entry := strings.TrimPrefix(fields[len(fields)-1], "*")
		if !strings.HasSuffix(entry, fileName) {
			continue
		}
		if prefix := strings.TrimSuffix(entry, fileName); prefix != "" && !strings.HasSuffix(prefix, "/") {
			continue
		}
		return strings.ToLower(fields[0]), true
	}
	return "", false
}

type ChecksumMismatchError struct {
	File     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.File, e.Expected, e.Actual)
}

// Verify checks path against manifest. It returns false with a nil error
// when the manifest has no entry for the file.
func Verify(manifest []byte, path string, algo Algorithm) (bool, error) {
	name := filepath.Base(path)
	expected, ok := LookupDigest(manifest, name)
	if !ok {
		return false, nil
	}
	actual, err := FileDigest(path, algo)
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(expected, actual) {
		return false, &ChecksumMismatchError{File: name, Expected: expected, Actual: actual}
	}
	return true, nil
}
