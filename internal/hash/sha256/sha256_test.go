// Package sha256 includes tests for the SHA-256 hasher adapter.
package sha256

import "testing"

// TestHasherHash checks known digests.
func TestHasherHash(t *testing.T) {
	t.Parallel()

	h := New()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "article body",
			input: "Bitcoin climbed past its previous high on Tuesday.",
			want:  "d9d9279ae683b5e2ee2ff60bc1f62b68d5bb1302292f27cc08ae17f85aa66795",
		},
		{
			name:  "empty input",
			input: "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := h.Hash([]byte(tc.input))
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Hash() = %s, want %s", got, tc.want)
			}
		})
	}
}

// TestHasherHashDistinguishesInputs ensures near-identical content hashes differently.
func TestHasherHashDistinguishesInputs(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte("ethereum merge complete"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := h.Hash([]byte("ethereum merge complete."))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a == b {
		t.Fatalf("expected different digests, both were %s", a)
	}
}
