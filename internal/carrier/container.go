// Package carrier normalizes ocean-carrier tracking input: container
// identifier validation (ISO 6346), event-code translation into the
// internal status vocabulary, and outbound tracking lookups.
package carrier

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Container-id validation failures carry a distinct sentinel per reason so
// callers can tell "wrong shape" from "bad checksum".
var (
	ErrContainerShape    = eris.New("carrier: container id does not match 4 letters + 7 digits")
	ErrContainerChecksum = eris.New("carrier: container id check digit mismatch")
)

// letterValues maps the owner-code letters to their ISO 6346 numeric
// values. The alphabet skips values divisible by 11 (11, 22, 33), which is
// why the sequence jumps at K→L, U→V.
var letterValues = map[byte]int{
	'A': 10, 'B': 12, 'C': 13, 'D': 14, 'E': 15, 'F': 16, 'G': 17,
	'H': 18, 'I': 19, 'J': 20, 'K': 21, 'L': 23, 'M': 24, 'N': 25,
	'O': 26, 'P': 27, 'Q': 28, 'R': 29, 'S': 30, 'T': 31, 'U': 32,
	'V': 34, 'W': 35, 'X': 36, 'Y': 37, 'Z': 38,
}

// ValidateContainerID normalizes and validates a container identifier.
// Whitespace and dashes are stripped and letters upper-cased before the
// shape and ISO 6346 check-digit tests. On success the normalized 11-char
// id is returned.
func ValidateContainerID(raw string) (string, error) {
	id := normalize(raw)

	if len(id) != 11 {
		return "", eris.Wrapf(ErrContainerShape, "got %q", raw)
	}
	for i := 0; i < 4; i++ {
		if id[i] < 'A' || id[i] > 'Z' {
			return "", eris.Wrapf(ErrContainerShape, "got %q", raw)
		}
	}
	for i := 4; i < 11; i++ {
		if id[i] < '0' || id[i] > '9' {
			return "", eris.Wrapf(ErrContainerShape, "got %q", raw)
		}
	}

	if checkDigit(id) != int(id[10]-'0') {
		return "", eris.Wrapf(ErrContainerChecksum, "got %q", raw)
	}
	return id, nil
}

func normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == ' ' || r == '-' || r == '\t':
			continue
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// checkDigit computes the ISO 6346 check digit over the first 10
// characters: each character value is weighted by 2^position, summed, and
// reduced mod 11 with a result of 10 mapping to 0.
func checkDigit(id string) int {
	sum := 0
	weight := 1
	for i := 0; i < 10; i++ {
		v := 0
		if id[i] >= 'A' && id[i] <= 'Z' {
			v = letterValues[id[i]]
		} else {
			v = int(id[i] - '0')
		}
		sum += v * weight
		weight *= 2
	}
	return (sum % 11) % 10
}
