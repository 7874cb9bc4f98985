package download

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
)

// digest hashes the body as it is written and checks it on Commit.
type digest struct {
	h        hash.Hash
	expected []byte
}

func newDigest(h hash.Hash, expected string) (*digest, error) {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return nil, fmt.Errorf("decoding expected checksum: %w", err)
	}
	if len(want) != h.Size() {
		return nil, fmt.Errorf("expected checksum has %d bytes, hash produces %d", len(want), h.Size())
	}

	return &digest{h: h, expected: want}, nil
}

func (d *digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

func (d *digest) verify() error {
	if d == nil {
		return nil
	}

	got := d.h.Sum(nil)
	if !bytes.Equal(got, d.expected) {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("expected %x, got %x", d.expected, got),
		}
	}

	return nil
}
