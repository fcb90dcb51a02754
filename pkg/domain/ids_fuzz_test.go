package domain

import "testing"

// FuzzParseSubmissionID verifies that parsing never panics on arbitrary input
// and that any accepted value round-trips through String unchanged.
func FuzzParseSubmissionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("not-a-uuid")
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSubmissionID(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseSubmissionID(id.String())
		if err != nil {
			t.Fatalf("accepted id failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Fatal("round-trip changed id value")
		}
		if len(id.Suffix()) != 8 {
			t.Fatalf("suffix length %d, want 8", len(id.Suffix()))
		}
	})
}
