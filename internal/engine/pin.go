package engine

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrPinnedKeyMismatch is returned when the server's public key matches
// none of the pinned hashes.
var ErrPinnedKeyMismatch = errors.New("pinned public key mismatch")

const pinPrefix = "sha256//"

// ParsePins validates a pin list of the form "sha256//<b64>;sha256//<b64>".
func ParsePins(s string) ([]string, error) {
	var pins []string
	for _, p := range strings.Split(s, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		enc, ok := strings.CutPrefix(p, pinPrefix)
		if !ok {
			return nil, fmt.Errorf("pin %q: only %s hashes are supported", p, pinPrefix)
		}

		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("pin %q: %w", p, err)
		}
		if len(raw) != sha256.Size {
			return nil, fmt.Errorf("pin %q: want %d bytes, got %d", p, sha256.Size, len(raw))
		}

		pins = append(pins, enc)
	}

	if len(pins) == 0 {
		return nil, errors.New("no pins given")
	}

	return pins, nil
}

// PinOf returns the pin string for a DER-encoded SubjectPublicKeyInfo.
func PinOf(spki []byte) string {
	sum := sha256.Sum256(spki)
	return pinPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

// verifyPins returns a tls.Config.VerifyConnection hook checking the leaf
// certificate against pins.
func verifyPins(pins []string) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return ErrPinnedKeyMismatch
		}

		sum := sha256.Sum256(cs.PeerCertificates[0].RawSubjectPublicKeyInfo)
		got := base64.StdEncoding.EncodeToString(sum[:])
		for _, p := range pins {
			if p == got {
				return nil
			}
		}

		return fmt.Errorf("%w: server key %s%s", ErrPinnedKeyMismatch, pinPrefix, got)
	}
}
