package metadata

// Metadata represents the headers carried alongside a broker message.
type Metadata map[string]string

// Standard header keys written on every outbound message.
const (
	KeyCorrelationID = "correlation_id"
	KeySessionID     = "session_id"
	KeyInstanceID    = "acs_instance_id"
	KeyEventSchema   = "event_message_schema"
	KeyReceivedAt    = "received_at"

	// KeyPartitionKey is read by keyed transports (Kafka) to pick the record key.
	KeyPartitionKey = "partition_key"

	// Dead-letter annotations.
	KeyError         = "error"
	KeyOriginalTopic = "original_topic"
	KeyAttempts      = "attempts"
)

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// Get is nil-safe.
func (m Metadata) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
