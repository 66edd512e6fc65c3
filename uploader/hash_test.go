package uploader

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestHashFile_MatchesReferenceDigest(t *testing.T) {
	dir := t.TempDir()
	// Sizes around the block boundary and a multi-block file.
	for _, size := range []int{0, 1, hashBlockSize - 1, hashBlockSize, hashBlockSize + 1, 5*hashBlockSize + 17} {
		content := make([]byte, size)
		for i := range content {
			content[i] = byte(i * 31)
		}
		path := writeFile(t, filepath.Join(dir, "f.bin"), string(content))

		got, err := HashFile(path)
		require.NoError(t, err)
		ref := sha256.Sum256(content)
		require.Equal(t, hex.EncodeToString(ref[:]), got, "size %d", size)
	}
}

func TestHashReader_ShortReads(t *testing.T) {
	content := bytes.Repeat([]byte("icos"), 3000)
	got, err := HashReader(iotest.OneByteReader(bytes.NewReader(content)))
	require.NoError(t, err)
	ref := sha256.Sum256(content)
	require.Equal(t, hex.EncodeToString(ref[:]), got)
}

func TestHashFile_Missing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "nope.nc"))
	require.Error(t, err)
}
