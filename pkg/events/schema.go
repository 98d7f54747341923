package events

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// MetricsUpdatedData is the payload for metrics.updated events. Emitted
// after every write that recomputes a company's credit metrics.
type MetricsUpdatedData struct {
	SchemaVersion string                `json:"schema_version"`
	Ticker        string                `json:"ticker"`
	Metrics       *models.CreditMetrics `json:"metrics"`
}

// SnapshotCapturedData is the payload for snapshot.captured events. The
// snapshot body stays in Postgres; the event carries the index entry only.
type SnapshotCapturedData struct {
	SchemaVersion string      `json:"schema_version"`
	SnapshotID    string      `json:"snapshot_id"`
	AsOf          models.Date `json:"as_of"`
	Fingerprint   string      `json:"fingerprint"`
	CreatedAt     time.Time   `json:"created_at"`
}
