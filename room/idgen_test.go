package room

import (
	"math/rand"
	"strings"
	"testing"
)

func TestGenerateRoomID_Length(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	id := GenerateRoomID(rng, 8)
	if len(id) != 8 {
		t.Errorf("Expected length 8, got %d", len(id))
	}

	id = GenerateRoomID(rng, 0)
	if len(id) != DefaultIDLength {
		t.Errorf("Expected default length %d, got %d", DefaultIDLength, len(id))
	}
}

func TestGenerateRoomID_Alphabet(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		id := GenerateRoomID(rng, 8)
		for _, c := range id {
			if !strings.ContainsRune(Alphabet, c) {
				t.Fatalf("Id %q contains %q, outside the alphabet", id, c)
			}
		}
		// None of the confusable characters may ever appear.
		if strings.ContainsAny(id, "lo01") {
			t.Fatalf("Id %q contains a confusable character", id)
		}
	}
}

func TestGenerateRoomID_Deterministic(t *testing.T) {
	a := GenerateRoomID(rand.New(rand.NewSource(7)), 8)
	b := GenerateRoomID(rand.New(rand.NewSource(7)), 8)
	if a != b {
		t.Errorf("Same seed should generate the same id: %q vs %q", a, b)
	}
}
