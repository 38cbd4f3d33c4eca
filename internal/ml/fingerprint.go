package ml

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// ErrFingerprintMismatch reports an artifact whose content differs from the
// pinned fingerprint.
var ErrFingerprintMismatch = errors.New("ml: artifact fingerprint mismatch")

// Fingerprint returns the hex BLAKE3 digest identifying an artifact made of
// the given parts, in order. Each part is length-prefixed so that moving
// bytes between the scaler and the model changes the digest.
func Fingerprint(parts ...[]byte) string {
	h := blake3.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintFiles reads the scaler and model files and fingerprints them.
func FingerprintFiles(scalerPath, modelPath string) (string, error) {
	scaler, err := os.ReadFile(scalerPath)
	if err != nil {
		return "", &LoadError{Path: scalerPath, Err: err}
	}
	model, err := os.ReadFile(modelPath)
	if err != nil {
		return "", &LoadError{Path: modelPath, Err: err}
	}
	return Fingerprint(scaler, model), nil
}

// verifyFingerprint compares got with a pinned value. An empty pin accepts
// anything.
func verifyFingerprint(pinned, got string) error {
	pinned = strings.ToLower(strings.TrimSpace(pinned))
	if pinned == "" || pinned == got {
		return nil
	}
	return fmt.Errorf("%w: pinned %s, got %s", ErrFingerprintMismatch, pinned, got)
}

// ShortFingerprint returns the first 12 hex digits for display.
func ShortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
