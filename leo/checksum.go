package leo

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// File checksums use xxHash64 with seed 0. The seed is a cross-system
// contract: the companion desktop app hashes the same files with the same
// seed, and the server matches records across clients by checksum. Do not
// change it.

// Checksum returns the xxHash64 digest of data as lowercase hex with no
// leading zero padding, matching JavaScript's Number.toString(16).
func Checksum(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// ChecksumFile hashes the file at path. An unreadable file returns an
// error; callers abort the operation for that file only.
func ChecksumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s for checksum: %w", path, err)
	}
	return Checksum(data), nil
}
