package leo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_Deterministic(t *testing.T) {
	data := []byte("part geometry bytes")

	first := Checksum(data)
	second := Checksum(data)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestChecksum_EmptyInput(t *testing.T) {
	// Known xxHash64 value for zero bytes, shared with the companion app.
	assert.Equal(t, "ef46db3751d8e999", Checksum(nil))
	assert.Equal(t, "ef46db3751d8e999", Checksum([]byte{}))
}

func TestChecksum_DistinguishesContent(t *testing.T) {
	assert.NotEqual(t, Checksum([]byte("rev A")), Checksum([]byte("rev B")))
}

func TestChecksum_LowercaseHex(t *testing.T) {
	sum := Checksum([]byte("widget"))

	for _, c := range sum {
		assert.Contains(t, "0123456789abcdef", string(c))
	}
}

func TestChecksumFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.sldprt")
	require.NoError(t, os.WriteFile(path, []byte("solid body"), 0o644))

	sum, err := ChecksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, Checksum([]byte("solid body")), sum)
}

func TestChecksumFile_Missing(t *testing.T) {
	_, err := ChecksumFile(filepath.Join(t.TempDir(), "absent.sldprt"))
	require.Error(t, err)
}
