package entity

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

// ContentHash identifies the hash algorithm used to address a blob.
type ContentHash uint8

const (
	ContentHashSHA256 ContentHash = iota
	ContentHashSHA512
)

// Name returns the canonical lowercase name used in persisted config and
// on-disk directory layout.
func (c ContentHash) Name() string {
	switch c {
	case ContentHashSHA256:
		return "sha256"
	case ContentHashSHA512:
		return "sha512"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseContentHash parses the canonical name back into a ContentHash.
func ParseContentHash(s string) (ContentHash, bool) {
	switch s {
	case "sha256":
		return ContentHashSHA256, true
	case "sha512":
		return ContentHashSHA512, true
	default:
		return 0, false
	}
}

// HashBlob computes the hex digest of data under this algorithm.
func (c ContentHash) HashBlob(data []byte) string {
	switch c {
	case ContentHashSHA512:
		sum := sha512.Sum512(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// MarshalJSON encodes the algorithm by its canonical name.
func (c ContentHash) MarshalJSON() ([]byte, error) {
	return marshalEnumJSON(c.Name())
}

// UnmarshalJSON decodes the algorithm from its canonical name.
func (c *ContentHash) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "ContentHash", func(s string) (int, bool) {
		h, ok := ParseContentHash(s)
		return int(h), ok
	})
	if err != nil {
		return err
	}
	*c = ContentHash(v)
	return nil
}

// BlobReference names a blob in a persistence store by content hash.
type BlobReference struct {
	Algo ContentHash
	Hash string
}

// ForBlob computes the reference for the given bytes under algo.
func ForBlob(blob []byte, algo ContentHash) BlobReference {
	return BlobReference{Algo: algo, Hash: algo.HashBlob(blob)}
}
