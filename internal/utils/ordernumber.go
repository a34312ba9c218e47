package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// GenerateOrderNumber builds a human-legible order reference from the creation
// timestamp plus a random suffix. References sort by creation time.
func GenerateOrderNumber() string {
	now := time.Now().UTC()

	datePart := now.Format("20060102-150405")
	millis := now.Nanosecond() / int(time.Millisecond)

	// 4-digit cryptographic random
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// fallback: time-based entropy
		n = big.NewInt(now.UnixNano() % 10000)
	}

	return strings.ToUpper(fmt.Sprintf(
		"FMD-%s-%03d-%04d",
		datePart,
		millis,
		n.Int64(),
	))
}
