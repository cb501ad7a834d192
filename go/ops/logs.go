package ops

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/estuary/data-plane-core/go/catalog"
	"github.com/estuary/data-plane-core/go/labels"
)

// Log is the canonical shape of a published operations log document.
type Log struct {
	Meta struct {
		UUID string `json:"uuid"`
	} `json:"_meta"`
	Timestamp time.Time       `json:"ts"`
	Level     labels.LogLevel `json:"level"`
	Message   string          `json:"message"`
	Fields    json.RawMessage `json:"fields,omitempty"`
	Shard     ShardRef        `json:"shard,omitempty"`
	Spans     []Log           `json:"spans,omitempty"`
}

// LogCollection returns the collection to which logs of the given task
// (by its task name's tenant prefix) are written.
func LogCollection(taskName string) string {
	return fmt.Sprintf("ops/%s/logs", strings.Split(taskName, "/")[0])
}

// ValidateLogsCollection sanity-checks that the given CollectionSpec is
// appropriate for storing Log documents.
func ValidateLogsCollection(spec *catalog.CollectionSpec) error {
	if !reflect.DeepEqual(
		spec.KeyPtrs,
		[]string{"/shard/name", "/shard/keyBegin", "/shard/rClockBegin", "/ts"},
	) {
		return fmt.Errorf("CollectionSpec doesn't have expected key: %v", spec.KeyPtrs)
	}
	if !reflect.DeepEqual(spec.PartitionFields, []string{"kind", "name"}) {
		return fmt.Errorf(
			"CollectionSpec doesn't have expected partitions 'kind' & 'name': %v",
			spec.PartitionFields)
	}
	return nil
}
