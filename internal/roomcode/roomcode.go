package roomcode

import (
	"math/rand"
	"regexp"
)

// Alphabet excludes visually ambiguous characters (0/O, 1/I).
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const Length = 6

var codePattern = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{6}$`)

// Generate returns a random 6-character room code.
func Generate() string {
	b := make([]byte, Length)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Valid reports whether code is a well-formed room code. Callers must
// validate before any store lookup.
func Valid(code string) bool {
	return codePattern.MatchString(code)
}
