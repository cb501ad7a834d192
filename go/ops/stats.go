package ops

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/estuary/data-plane-core/go/catalog"
)

// StatsCollection returns the collection to which stats for the given task
// name are written.
func StatsCollection(taskName string) string {
	return fmt.Sprintf("ops/%s/stats", strings.Split(taskName, "/")[0])
}

// ValidateStatsCollection sanity-checks that the given CollectionSpec is
// appropriate for storing Stats documents.
func ValidateStatsCollection(spec *catalog.CollectionSpec) error {
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

// StatsEvent is the canonical shape of a published ops/<tenant>/stats
// document. The per-connector binding stats (capture/materialize/derive breakdowns) are carried as
// opaque maps rather than typed connector-protocol structs, since connector
// wire protocols are outside this repository's scope.
type StatsEvent struct {
	Meta             Meta                   `json:"_meta"`
	Shard            ShardRef               `json:"shard"`
	Timestamp        time.Time              `json:"ts"`
	TxnCount         uint64                 `json:"txnCount"`
	OpenSecondsTotal float64                `json:"openSecondsTotal"`
	Bindings         map[string]BindingStats `json:"bindings,omitempty"`
}

type Meta struct {
	UUID string `json:"uuid"`
}

// DocsAndBytes is a document/byte counter pair.
type DocsAndBytes struct {
	Docs  uint64 `json:"docsTotal"`
	Bytes uint64 `json:"bytesTotal"`
}

// Add accumulates another counter pair into this one and returns the result.
func (s DocsAndBytes) Add(o DocsAndBytes) DocsAndBytes {
	return DocsAndBytes{Docs: s.Docs + o.Docs, Bytes: s.Bytes + o.Bytes}
}

// BindingStats is the per-binding left/right/out document and byte flow of
// a single task transaction, generalizing the capture/materialize/derive
// specific stats shapes of the upstream runtime into one common structure.
type BindingStats struct {
	Left  DocsAndBytes `json:"left,omitempty"`
	Right DocsAndBytes `json:"right,omitempty"`
	Out   DocsAndBytes `json:"out,omitempty"`
}

// GoTimestamp renders a time.Time as a stats document timestamp: RFC3339
// with nanosecond precision, matching the `ts` field of published
// ops/<tenant>/stats and ops/<tenant>/logs documents.
func GoTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
