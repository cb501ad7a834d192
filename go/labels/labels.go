// Package labels defines the reserved LabelSet names used to encode a
// RangeSpec, task identity, and split state onto ShardSpecs and JournalSpecs,
// and the routines that parse and build them. Adapted from the upstream
// Flow runtime's go/labels package, generalized from its protobuf-backed
// LabelSet to the plain catalog.LabelSet of this repository.
package labels

// Reserved label names (spec section 6), shared by ShardSpecs and JournalSpecs.
const (
	Build         = "build"
	TaskName      = "task-name"
	TaskType      = "task-type"
	ContentType   = "content-type"
	ManagedBy     = "managed-by"
	Collection    = "collection"
	SplitSource   = "split-source"
	SplitTarget   = "split-target"
	LogLevelLabel = "log-level"
	ExposePort    = "expose-port"
	PortProtoPrefix  = "port-proto-"
	PortPublicPrefix = "port-public-"
	Hostname    = "hostname"

	// FieldPrefix prefixes a partitioned field's name within a partition
	// journal's LabelSet, e.g. "estuary.dev/field/region" -> "us".
	FieldPrefix = "estuary.dev/field/"

	KeyBegin    = "estuary.dev/key-begin"
	KeyEnd      = "estuary.dev/key-end"
	RClockBegin = "estuary.dev/rclock-begin"
	RClockEnd   = "estuary.dev/rclock-end"
)

const (
	ContentTypeRecoveryLog = "recovery-log"
	ContentTypeJSONLines   = "json-lines"
	ManagedByFlow          = "flow"
)

// LogLevel names the severity of a structured log event published by a
// task shard, mirroring the teacher's pf.LogLevel enum but as a plain
// string-backed type rather than a generated protobuf enum.
type LogLevel string

const (
	LogLevelUndefined LogLevel = ""
	LogLevelTrace     LogLevel = "trace"
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelWarn      LogLevel = "warn"
	LogLevelError     LogLevel = "error"
)

// rank orders LogLevel by increasing verbosity (error least verbose,
// trace most), matching the teacher's pf.LogLevel enum ordinal order.
func (l LogLevel) rank() int {
	switch l {
	case LogLevelError:
		return 1
	case LogLevelWarn:
		return 2
	case LogLevelInfo:
		return 3
	case LogLevelDebug:
		return 4
	case LogLevelTrace:
		return 5
	default:
		return 3 // LogLevelUndefined behaves as LogLevelInfo.
	}
}

// AtLeast reports whether a shard configured at level |l| should emit an
// event logged at |other|: true unless |other| is strictly more verbose
// than |l| (e.g. a shard configured at "info" drops "debug"/"trace").
func (l LogLevel) AtLeast(other LogLevel) bool { return l.rank() >= other.rank() }

// IsRuntimeLabel returns true if the label name is one that's expected to be
// carried forward from an existing ShardSpec/JournalSpec onto its upserted
// replacement (range, split state, partition field values, and other
// data-plane-scoped labels), as opposed to labels sourced fresh from the
// task's template each time.
func IsRuntimeLabel(name string) bool {
	switch name {
	case KeyBegin, KeyEnd, RClockBegin, RClockEnd, SplitSource, SplitTarget, Hostname:
		return true
	}
	return hasPrefix(name, FieldPrefix) || hasPrefix(name, PortProtoPrefix) ||
		hasPrefix(name, PortPublicPrefix) || name == ExposePort
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
