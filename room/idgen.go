// room/idgen.go
package room

// Rand is the minimal randomness source the room package needs. *rand.Rand
// satisfies it, which keeps id generation deterministic in tests.
type Rand interface {
	Intn(n int) int
}

// Alphabet 排除了容易混淆的字符 l, o, 0, 1
const Alphabet = "abcdefghijkmnpqrstuvwxyz23456789"

// DefaultIDLength is the room id length used when config does not override it.
const DefaultIDLength = 8

// GenerateRoomID returns a random room id drawn from the confusable-free
// alphabet. Uniqueness is the caller's problem; see Store.Create.
func GenerateRoomID(rng Rand, length int) string {
	if length <= 0 {
		length = DefaultIDLength
	}
	id := make([]byte, length)
	for i := range id {
		id[i] = Alphabet[rng.Intn(len(Alphabet))]
	}
	return string(id)
}
