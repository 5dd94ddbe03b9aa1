package scene

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID creates a new ULID for shapes, suggestions and drawings.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
