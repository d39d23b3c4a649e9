package scan

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
)

// SampleSize is how much content is hashed from each end of a file.
const SampleSize = 1 << 20

// Fingerprint derives an opaque change-detection digest from a file: the MD5
// of its first SampleSize bytes, its last SampleSize bytes when the file is
// larger than twice the sample, its decimal size, and its decimal
// modification time in Unix seconds.
//
// This bounds hashing cost for very large files. The trade-off is a known
// detection gap: an interior-only edit of a large file that leaves size and
// modification time unchanged produces the same fingerprint. Fingerprints are
// a cheap change heuristic, not a guarantee of content equality.
func Fingerprint(path string, info fs.FileInfo) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.CopyN(hash, file, SampleSize); err != nil && err != io.EOF {
		return "", fmt.Errorf("hash head of %s: %w", path, err)
	}

	if info.Size() > 2*SampleSize {
		if _, err := file.Seek(-SampleSize, io.SeekEnd); err != nil {
			return "", fmt.Errorf("seek tail of %s: %w", path, err)
		}
		if _, err := io.CopyN(hash, file, SampleSize); err != nil && err != io.EOF {
			return "", fmt.Errorf("hash tail of %s: %w", path, err)
		}
	}

	io.WriteString(hash, strconv.FormatInt(info.Size(), 10))
	io.WriteString(hash, strconv.FormatInt(info.ModTime().Unix(), 10))

	return hex.EncodeToString(hash.Sum(nil)), nil
}
