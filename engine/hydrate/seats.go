package hydrate

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultSeats is the fallback seat count when the seating text matches no
// known pattern. A deliberate default, not an error condition.
const DefaultSeats = 5

var numberWords = []struct {
	word  string
	seats int
}{
	{"two", 2}, {"three", 3}, {"four", 4}, {"five", 5},
	{"six", 6}, {"seven", 7}, {"eight", 8}, {"nine", 9},
}

var (
	splitSeatingRe = regexp.MustCompile(`(\d+)\+(\d+)`)
	directSeatsRe  = regexp.MustCompile(`(?i)(\d+)\s*seats?`)
)

// ExtractSeats parses a free-text seating description. Priority order: an
// English number word, then a split-seating "N+M" pattern summed, then a
// direct "N seats" pattern, then DefaultSeats.
func ExtractSeats(seating string) int {
	lower := strings.ToLower(seating)
	for _, nw := range numberWords {
		if strings.Contains(lower, nw.word) {
			return nw.seats
		}
	}

	if m := splitSeatingRe.FindStringSubmatch(seating); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		return a + b
	}

	if m := directSeatsRe.FindStringSubmatch(seating); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}

	return DefaultSeats
}
