package crypto

import "testing"

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer(make([]byte, 32))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := testSealer(t)

	ciphertext, err := s.Seal("repo-1", "ghp_supersecret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if ciphertext == "ghp_supersecret" {
		t.Fatalf("ciphertext must not equal plaintext")
	}

	plaintext, err := s.Open("repo-1", ciphertext)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plaintext != "ghp_supersecret" {
		t.Fatalf("got %q, want %q", plaintext, "ghp_supersecret")
	}
}

func TestSealer_RejectsCiphertextForDifferentRepository(t *testing.T) {
	s := testSealer(t)

	ciphertext, err := s.Seal("repo-1", "ghp_supersecret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := s.Open("repo-2", ciphertext); err == nil {
		t.Fatalf("expected decryption to fail for a different repository id")
	}
}

func TestSealer_EmptyPlaintextRoundTripsEmpty(t *testing.T) {
	s := testSealer(t)

	ciphertext, err := s.Seal("repo-1", "")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if ciphertext != "" {
		t.Fatalf("expected empty ciphertext for empty plaintext, got %q", ciphertext)
	}

	plaintext, err := s.Open("repo-1", ciphertext)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plaintext != "" {
		t.Fatalf("expected empty plaintext, got %q", plaintext)
	}
}
