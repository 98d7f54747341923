package kafka

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/pkg/models"
)

// IncomingMessage wraps a raw Kafka message plus its parsed extraction
// payload.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Extraction *models.ExtractionMessage
}

// ParseExtraction decodes the payload as an extraction batch. Malformed or
// unroutable payloads return an error; the consumer commits those so one bad
// filing cannot wedge the partition.
func (m *IncomingMessage) ParseExtraction() error {
	var msg models.ExtractionMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return errors.Wrap(err, "failed to unmarshal extraction message")
	}
	if !msg.IsValid() {
		return errors.New("extraction message missing ticker or tenant")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.Timestamp
	}
	m.Extraction = &msg
	return nil
}

// TenantID returns the tenant from the parsed payload, falling back to the
// message header.
func (m *IncomingMessage) TenantID() string {
	if m.Extraction != nil {
		if t := m.Extraction.GetTenantID(); t != "" {
			return t
		}
	}
	return m.Headers["tenant_id"]
}
