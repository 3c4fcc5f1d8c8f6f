package orders

import (
	"fmt"
	"math/rand"
	"time"
)

const numberPrefix = "TB-"

// GenerateNumber produces a human-facing order number: prefixed, time
// based, with a random tail. Uniqueness is enforced by the store; a
// collision surfaces as a conflict and the caller regenerates.
func GenerateNumber() string {
	return fmt.Sprintf("%s%d%03d", numberPrefix, time.Now().UnixMilli(), rand.Intn(1000))
}

// GenerateReference produces the 9-digit payment reference handed to
// transfer providers.
func GenerateReference() string {
	return fmt.Sprintf("%09d", 100000000+rand.Int63n(900000000))
}
