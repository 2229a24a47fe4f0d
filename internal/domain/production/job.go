package production

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// JobStatus tracks the manufacturing state of a print job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusPrinted JobStatus = "printed"
	JobStatusFailed  JobStatus = "failed"
)

// Job represents one unit of downstream manufacturing work, created per order
// line. Jobs are created best-effort: a missing job is a data-quality issue
// for the production team, not a checkout failure.
type Job struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Status    JobStatus
	Options   json.RawMessage
	CreatedAt time.Time
}

// Initiator creates production jobs for a freshly placed order.
type Initiator interface {
	CreateBatch(ctx context.Context, jobs []Job) error
}
