package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	dErrors "refiling/pkg/domain-errors"
)

// Kind distinguishes the three artifact types a submission accumulates.
type Kind string

const (
	// KindDocument is the outbound batch document uploaded to the regulator.
	KindDocument Kind = "document"
	// KindAck is the first response artifact (batch-level acknowledgement).
	KindAck Kind = "ack"
	// KindConfirmation is the second response artifact carrying confirmation ids.
	KindConfirmation Kind = "confirmation"
)

// ParseKind constructs a Kind from external input.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindDocument, KindAck, KindConfirmation:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid artifact kind: "+s)
}

func (k Kind) String() string {
	return string(k)
}

// Artifact is a sealed, compressed document addressed by the SHA-256 of its
// uncompressed payload. Artifacts are immutable once sealed.
type Artifact struct {
	Hash       string
	Kind       Kind
	Filename   string
	Size       int
	Compressed []byte
	CreatedAt  time.Time
}

// Ref is the lightweight handle stored on the submission row. Callers fetch
// bytes through the Store by hash, so the backing store can move to blob
// storage without changing them.
type Ref struct {
	Hash     string `json:"hash"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

// Seal compresses and hashes a payload into an immutable Artifact.
func Seal(kind Kind, filename string, payload []byte, now time.Time) (*Artifact, error) {
	if len(payload) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "artifact payload must not be empty")
	}
	sum := sha256.Sum256(payload)
	return &Artifact{
		Hash:       hex.EncodeToString(sum[:]),
		Kind:       kind,
		Filename:   filename,
		Size:       len(payload),
		Compressed: compress(payload),
		CreatedAt:  now,
	}, nil
}

// Ref returns the handle to persist alongside the submission.
func (a *Artifact) Ref() Ref {
	return Ref{Hash: a.Hash, Filename: a.Filename, Size: a.Size}
}

// Payload decompresses the artifact and verifies size and integrity hash. A
// mismatch means the stored bytes were corrupted and is always an error.
func (a *Artifact) Payload() ([]byte, error) {
	payload, err := decompress(a.Compressed, a.Size)
	if err != nil {
		return nil, fmt.Errorf("decompress artifact %s: %w", a.Hash, err)
	}
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != a.Hash {
		return nil, fmt.Errorf("artifact %s: integrity hash mismatch", a.Hash)
	}
	return payload, nil
}
