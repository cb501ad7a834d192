// Package ops implements the ambient logging and stats-publication stack:
// the canonical Log/Stats document shapes published to the
// platform's own "ops" collections, and a Publisher abstraction over
// where those documents actually go. Adapted from the upstream Flow
// runtime's go/protocols/ops and go/flow/ops packages, generalized from
// the protobuf-backed pf.LogLevel/pf.Collection types to this repository's
// plain labels.LogLevel and string collection names.
package ops

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/estuary/data-plane-core/go/labels"
)

// Publisher of operation Logs.
type Publisher interface {
	// PublishLog publishes a Log instance.
	PublishLog(Log)
	// Labels is the shard context of this Publisher.
	Labels() labels.ShardLabeling
}

// ShardRef is a reference to the specific task shard that produced a log or
// stats event.
type ShardRef struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	KeyBegin    string `json:"keyBegin"`
	RClockBegin string `json:"rClockBegin"`
}

// NewShardRef builds a ShardRef from a shard's parsed labeling.
func NewShardRef(labeling labels.ShardLabeling) ShardRef {
	return ShardRef{
		Name:        labeling.TaskName,
		Kind:        string(labeling.TaskType),
		KeyBegin:    fmt.Sprintf("%08x", labeling.Range.KeyBegin),
		RClockBegin: fmt.Sprintf("%08x", labeling.Range.RClockBegin),
	}
}

// PublishLog constructs and publishes a Log using the given Publisher.
// Fields must be pairs of a string key followed by a JSON-encodable value.
// PublishLog panics if fields has odd length, a key isn't a string, or a
// value cannot be encoded as JSON: these are developer errors, not user or
// input errors.
func PublishLog(publisher Publisher, level labels.LogLevel, message string, fields ...interface{}) {
	if !publisher.Labels().LogLevel.AtLeast(level) {
		return
	}

	if len(fields)%2 != 0 {
		panic(fmt.Sprintf("fields must be of even length: %#v", fields))
	}

	var m = make(map[string]interface{}, len(fields)/2)
	for i := 0; i != len(fields); i += 2 {
		var key = fields[i].(string)
		var value = fields[i+1]

		// Errors typically marshal to '{}' via their struct shape, so
		// explicitly render them as their displayed string instead.
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		m[key] = value
	}

	fieldsRaw, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}

	publisher.PublishLog(Log{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Fields:    json.RawMessage(fieldsRaw),
		Shard:     NewShardRef(publisher.Labels()),
		Spans:     nil, // Not supported from Go.
	})
}
