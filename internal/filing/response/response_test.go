package response

import (
	"strings"
	"testing"
)

// =============================================================================
// Acknowledgement Parsing Tests
// =============================================================================
// Response artifacts come from an external system that occasionally emits
// garbage. Parsing must degrade to an escalatable result, never panic or
// return an error the poll loop would retry forever.

func TestParseAck(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		result := ParseAck([]byte(`<BatchAcknowledgement><StatusCode>A</StatusCode></BatchAcknowledgement>`))
		if result.Status != AckAccepted {
			t.Fatalf("expected accepted, got %s", result.Status)
		}
		if len(result.Errors) != 0 {
			t.Fatalf("expected no items, got %d", len(result.Errors))
		}
	})

	t.Run("rejected with errors kept verbatim", func(t *testing.T) {
		result := ParseAck([]byte(`
			<BatchAcknowledgement>
				<StatusCode>R</StatusCode>
				<Error code="E-1420" seq="4">  owner identification failed  </Error>
				<Error code="E-0003" seq="9">missing closing date</Error>
			</BatchAcknowledgement>`))
		if result.Status != AckRejected {
			t.Fatalf("expected rejected, got %s", result.Status)
		}
		if len(result.Errors) != 2 {
			t.Fatalf("expected 2 errors, got %d", len(result.Errors))
		}
		first := result.Errors[0]
		if first.Code != "E-1420" || first.Sequence != 4 || first.Message != "owner identification failed" {
			t.Fatalf("unexpected first error: %+v", first)
		}
	})

	t.Run("accepted with warnings collects warning items", func(t *testing.T) {
		result := ParseAck([]byte(`
			<BatchAcknowledgement>
				<StatusCode>W</StatusCode>
				<Warning code="W-210" seq="2">contact phone missing</Warning>
			</BatchAcknowledgement>`))
		if result.Status != AckAcceptedWithWarnings {
			t.Fatalf("expected accepted_with_warnings, got %s", result.Status)
		}
		if len(result.Errors) != 1 || result.Errors[0].Code != "W-210" {
			t.Fatalf("unexpected items: %+v", result.Errors)
		}
	})

	t.Run("spelled-out status codes", func(t *testing.T) {
		result := ParseAck([]byte(`<BatchAcknowledgement><StatusCode>rejected</StatusCode></BatchAcknowledgement>`))
		if result.Status != AckRejected {
			t.Fatalf("expected rejected, got %s", result.Status)
		}
	})

	t.Run("unknown status code degrades with snippet", func(t *testing.T) {
		result := ParseAck([]byte(`<BatchAcknowledgement><StatusCode>Q</StatusCode></BatchAcknowledgement>`))
		if result.Status != AckUnknown {
			t.Fatalf("expected unknown, got %s", result.Status)
		}
		if result.Raw == "" {
			t.Fatal("expected raw snippet to be preserved")
		}
	})

	t.Run("malformed xml degrades with snippet", func(t *testing.T) {
		result := ParseAck([]byte(`<<<garbage`))
		if result.Status != AckUnknown {
			t.Fatalf("expected unknown, got %s", result.Status)
		}
		if !strings.Contains(result.Raw, "garbage") {
			t.Fatalf("expected snippet to carry input head, got %q", result.Raw)
		}
	})

	t.Run("oversized garbage is truncated", func(t *testing.T) {
		result := ParseAck([]byte(strings.Repeat("x", 10_000)))
		if len(result.Raw) != snippetLimit {
			t.Fatalf("expected %d-byte snippet, got %d", snippetLimit, len(result.Raw))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		result := ParseAck(nil)
		if result.Status != AckUnknown {
			t.Fatalf("expected unknown, got %s", result.Status)
		}
	})
}

// =============================================================================
// Confirmation Parsing Tests
// =============================================================================

func TestParseConfirmation(t *testing.T) {
	t.Run("single confirmation", func(t *testing.T) {
		result := ParseConfirmation([]byte(`
			<ConfirmationFile>
				<Confirmation seq="1" id="BSA-2026-000771"/>
			</ConfirmationFile>`))
		if !result.Parsed {
			t.Fatal("expected parsed result")
		}
		if len(result.Confirmations) != 1 {
			t.Fatalf("expected 1 confirmation, got %d", len(result.Confirmations))
		}
		c := result.Confirmations[0]
		if c.Sequence != 1 || c.ConfirmationID != "BSA-2026-000771" {
			t.Fatalf("unexpected confirmation: %+v", c)
		}
	})

	t.Run("blank ids are dropped", func(t *testing.T) {
		result := ParseConfirmation([]byte(`
			<ConfirmationFile>
				<Confirmation seq="1" id="  "/>
				<Confirmation seq="2" id="BSA-2026-000772"/>
			</ConfirmationFile>`))
		if !result.Parsed {
			t.Fatal("expected parsed result")
		}
		if len(result.Confirmations) != 1 || result.Confirmations[0].Sequence != 2 {
			t.Fatalf("unexpected confirmations: %+v", result.Confirmations)
		}
	})

	t.Run("errors without confirmations", func(t *testing.T) {
		result := ParseConfirmation([]byte(`
			<ConfirmationFile>
				<Error code="E-88" seq="1">confirmation withheld</Error>
			</ConfirmationFile>`))
		if !result.Parsed {
			t.Fatal("expected parsed result")
		}
		if len(result.Confirmations) != 0 || len(result.Errors) != 1 {
			t.Fatalf("unexpected result: %+v", result)
		}
	})

	t.Run("malformed xml", func(t *testing.T) {
		result := ParseConfirmation([]byte(`{"this": "is json"}`))
		if result.Parsed {
			t.Fatal("expected unparsed result")
		}
		if !strings.Contains(result.Raw, "json") {
			t.Fatalf("expected snippet, got %q", result.Raw)
		}
	})
}
