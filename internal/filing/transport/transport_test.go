package transport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Filename Generation Tests
// =============================================================================

func TestBuildFilename(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 4, 5, 0, time.UTC)

	t.Run("format", func(t *testing.T) {
		got := BuildFilename(at, "Acme Title", "4f9a01bc")
		want := "RRETR.20260310090405.ACMETITLE.4f9a01bc.xml"
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	t.Run("timestamp is utc", func(t *testing.T) {
		est := time.FixedZone("EST", -5*3600)
		got := BuildFilename(at.In(est), "Acme", "ab")
		if !strings.Contains(got, ".20260310090405.") {
			t.Fatalf("expected UTC timestamp, got %q", got)
		}
	})

	t.Run("org sanitization", func(t *testing.T) {
		got := BuildFilename(at, "Söder & Vinge, LLC.", "ab")
		if !strings.Contains(got, ".SÖDERVINGELLC.") {
			t.Fatalf("unexpected org segment: %q", got)
		}
	})

	t.Run("empty org falls back", func(t *testing.T) {
		got := BuildFilename(at, "---", "ab")
		if !strings.Contains(got, ".ORG.") {
			t.Fatalf("expected ORG fallback, got %q", got)
		}
	})

	t.Run("same second with different submissions stays unique", func(t *testing.T) {
		a := BuildFilename(at, "Acme", "aaaaaaaa")
		b := BuildFilename(at, "Acme", "bbbbbbbb")
		if a == b {
			t.Fatalf("filenames must differ: %q", a)
		}
	})
}

// =============================================================================
// Mock Client Tests
// =============================================================================

func TestMockClient(t *testing.T) {
	ctx := context.Background()

	t.Run("upload and readback", func(t *testing.T) {
		m := NewMock()
		if err := m.Upload(ctx, "RRETR.x.xml", []byte("payload")); err != nil {
			t.Fatalf("upload: %v", err)
		}
		got, ok := m.Uploaded("RRETR.x.xml")
		if !ok || string(got) != "payload" {
			t.Fatalf("unexpected readback: %q %v", got, ok)
		}
	})

	t.Run("list matches prefix against responses only", func(t *testing.T) {
		m := NewMock()
		if err := m.Upload(ctx, "RRETR.a.xml", []byte("doc")); err != nil {
			t.Fatalf("upload: %v", err)
		}
		m.DropResponse("RRETR.a.xml"+AckSuffix, []byte("<ack/>"))
		m.DropResponse("RRETR.b.xml"+AckSuffix, []byte("<ack/>"))

		names, err := m.List(ctx, "RRETR.a.xml")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(names) != 1 || names[0] != "RRETR.a.xml"+AckSuffix {
			t.Fatalf("unexpected names: %v", names)
		}
	})

	t.Run("download missing file is a transport error", func(t *testing.T) {
		m := NewMock()
		_, err := m.Download(ctx, "nope")
		var terr *Error
		if !errors.As(err, &terr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if terr.Op != "download" {
			t.Fatalf("unexpected op: %q", terr.Op)
		}
	})

	t.Run("failing uploads", func(t *testing.T) {
		m := NewMock()
		m.FailUploads = true
		err := m.Upload(ctx, "x", []byte("y"))
		var terr *Error
		if !errors.As(err, &terr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if _, ok := m.Uploaded("x"); ok {
			t.Fatal("failed upload must not store the payload")
		}
	})
}
