package lifecycle

import (
	"fmt"
	"time"

	"media-ingest/internal/faults"
)

func faultTimeout(op string, d time.Duration) *faults.Error {
	return faults.New(faults.Timeout, op, fmt.Sprintf("deadline of %v exceeded", d))
}
