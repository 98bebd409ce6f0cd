package bus

import "errors"

// Topic names.
const (
	TopicSnapshots = "scout.snapshots"
	TopicAlerts    = "scout.alerts"
	TopicAudit     = "scout.audit"
)

// SchemaVersion is stamped into every produced message header.
const SchemaVersion = "1.0.0"

// ErrClosed is returned by a producer or consumer used after Close.
var ErrClosed = errors.New("bus: closed")
