package canvas

import (
	"time"

	"github.com/google/uuid"
)

// newID returns a fresh random identifier for projects, items and threads.
func newID() string {
	return uuid.New().String()
}

// nowMs is swapped in tests that need a fixed clock.
var nowMs = func() int64 {
	return time.Now().UnixMilli()
}
