package workflow

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// randomDigits is swappable so tests can force reference collisions.
var randomDigits = func(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}

// GenerateReference derives a human-readable reference number from a
// service type code: three-letter prefix + year + six random digits,
// e.g. "CAR2026123456".
func GenerateReference(serviceType string, now time.Time) string {
	prefix := []rune(strings.ToUpper(serviceType))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("%s%d%s", string(prefix), now.Year(), randomDigits(6))
}
