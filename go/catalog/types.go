// Package catalog defines the plain-Go data model shared by the convergence
// engine, activation controller, and field-selection solver: catalog specs,
// range specs, label sets, and the task shard/recovery-log templates they
// expand into.
//
// The generated protobuf catalog types that the upstream Flow runtime uses
// were not retrievable in this environment (no protoc codegen available),
// so CatalogSpec, Projection, RangeSpec and friends are hand-written plain
// structs here instead, mirroring the shapes described by the JSON-speaking
// external interfaces (spec section 6) and the helper methods the upstream
// `go/protocols/flow/*_extensions.go` files hand-wrote atop the generated
// types. Journal and shard specs themselves remain the real
// go.gazette.dev/core types (pb.JournalSpec, pc.ShardSpec) since those are
// an external, consumed capability, not part of the catalog data model.
package catalog

import (
	"fmt"
	"sort"
)

// BuildID is a monotonic identifier assigned per publication of a task.
// It is non-decreasing per task (spec section 3 invariants).
type BuildID uint64

// PubID is an opaque identifier of the publication that produced a spec.
type PubID uint64

// TaskType names the three kinds of task a CatalogSpec may describe.
type TaskType string

const (
	TaskTypeCapture         TaskType = "capture"
	TaskTypeDerivation      TaskType = "derivation"
	TaskTypeMaterialization TaskType = "materialization"
)

// Label is a single (name, value) pair. LabelSet is an ordered multiset of
// Labels; equality and lookups are defined over (name, value) pairs.
type Label struct {
	Name  string
	Value string
}

// LabelSet is an ordered multiset of Labels, kept sorted by (name, value)
// so that Equal and the wire encoding are well defined. Use AddValue/SetValue
// to mutate; never append to Labels directly, or sort order is lost.
type LabelSet struct {
	Labels []Label
}

// NewLabelSet builds a LabelSet from alternating name, value pairs.
func NewLabelSet(pairs ...string) LabelSet {
	var set LabelSet
	if len(pairs)%2 != 0 {
		panic("NewLabelSet requires an even number of arguments")
	}
	for i := 0; i < len(pairs); i += 2 {
		set.AddValue(pairs[i], pairs[i+1])
	}
	return set
}

// ValuesOf returns all values of the named label, in sorted order.
func (s LabelSet) ValuesOf(name string) []string {
	var out []string
	for _, l := range s.Labels {
		if l.Name == name {
			out = append(out, l.Value)
		}
	}
	return out
}

// AddValue adds a (name, value) pair, preserving sort order. Duplicate
// (name, value) pairs are not added twice.
func (s *LabelSet) AddValue(name, value string) {
	for _, l := range s.Labels {
		if l.Name == name && l.Value == value {
			return
		}
	}
	s.Labels = append(s.Labels, Label{Name: name, Value: value})
	sort.Slice(s.Labels, func(i, j int) bool {
		if s.Labels[i].Name != s.Labels[j].Name {
			return s.Labels[i].Name < s.Labels[j].Name
		}
		return s.Labels[i].Value < s.Labels[j].Value
	})
}

// SetValue removes all existing values of |name| and sets it to |value|.
func (s *LabelSet) SetValue(name, value string) {
	s.Remove(name)
	s.AddValue(name, value)
}

// Remove deletes all labels with the given name.
func (s *LabelSet) Remove(name string) {
	var out = s.Labels[:0]
	for _, l := range s.Labels {
		if l.Name != name {
			out = append(out, l)
		}
	}
	s.Labels = out
}

// Equal reports whether two LabelSets carry the same (name, value) pairs.
func (s LabelSet) Equal(o LabelSet) bool {
	if len(s.Labels) != len(o.Labels) {
		return false
	}
	for i := range s.Labels {
		if s.Labels[i] != o.Labels[i] {
			return false
		}
	}
	return true
}

// RangeSpec is a 2-D rectangle in (key, r-clock) u32 space owned by a shard.
type RangeSpec struct {
	KeyBegin    uint32
	KeyEnd      uint32
	RClockBegin uint32
	RClockEnd   uint32
}

// Validate checks the RangeSpec's interval ordering invariants.
func (r RangeSpec) Validate() error {
	if r.KeyBegin > r.KeyEnd {
		return fmt.Errorf("expected KeyBegin <= KeyEnd (%08x vs %08x)", r.KeyBegin, r.KeyEnd)
	}
	if r.RClockBegin > r.RClockEnd {
		return fmt.Errorf("expected RClockBegin <= RClockEnd (%08x vs %08x)", r.RClockBegin, r.RClockEnd)
	}
	return nil
}

// Covers reports whether the union of lhs and rhs exactly reconstructs a
// parent range: used to check the split invariant (spec testable property 6).
func Covers(parent, lhs, rhs RangeSpec) bool {
	if lhs.RClockBegin == rhs.RClockBegin && lhs.RClockEnd == rhs.RClockEnd {
		// Split on key.
		return lhs.KeyBegin == parent.KeyBegin &&
			rhs.KeyEnd == parent.KeyEnd &&
			lhs.KeyEnd+1 == rhs.KeyBegin &&
			lhs.RClockBegin == parent.RClockBegin &&
			rhs.RClockEnd == parent.RClockEnd
	}
	if lhs.KeyBegin == rhs.KeyBegin && lhs.KeyEnd == rhs.KeyEnd {
		// Split on r-clock.
		return lhs.RClockBegin == parent.RClockBegin &&
			rhs.RClockEnd == parent.RClockEnd &&
			lhs.RClockEnd+1 == rhs.RClockBegin &&
			lhs.KeyBegin == parent.KeyBegin &&
			rhs.KeyEnd == parent.KeyEnd
	}
	return false
}

// Inference describes the statically-inferred shape of a projected location.
type Inference struct {
	Types       []string
	String_     *StringInference `json:"string,omitempty"`
	Exists      string           // "must", "may", "implicit", "cannot"
	IsBase64    bool
	Description string
}

// StringInference carries string-specific inference metadata.
type StringInference struct {
	Format   string
	MaxLen   int
	Pattern  string
	ContentType string
}

// Projection binds a logical field name to a location within documents.
type Projection struct {
	Field        string
	Ptr          string
	Inference    Inference
	IsPrimaryKey bool
	IsPartition  bool
}

// IsRootDocumentProjection is true for the projection of the whole document.
func (p Projection) IsRootDocumentProjection() bool { return p.Ptr == "" }

// CollectionSpec is the catalog spec for a Flow collection.
type CollectionSpec struct {
	Name              string
	BuildID           BuildID
	LastPubID         PubID
	KeyPtrs           []string
	Projections       []Projection
	PartitionFields   []string
	PartitionTemplate JournalTemplate
	// Derivation is non-nil when the collection is derived (is also a task).
	Derivation *DerivationSpec
}

// GetProjection returns the projection with the given field, or nil.
func (c *CollectionSpec) GetProjection(field string) *Projection {
	for i := range c.Projections {
		if c.Projections[i].Field == field {
			return &c.Projections[i]
		}
	}
	return nil
}

// DerivationSpec is the task-shaped part of a derived collection.
type DerivationSpec struct {
	ShardTemplate ShardTemplate
	Disabled      bool
}

// CaptureSpec is the catalog spec for a capture task.
type CaptureSpec struct {
	Name          string
	BuildID       BuildID
	LastPubID     PubID
	ShardTemplate ShardTemplate
	Disabled      bool
	ConnectorImage string
}

// MaterializationSpec is the catalog spec for a materialization task.
type MaterializationSpec struct {
	Name          string
	BuildID       BuildID
	LastPubID     PubID
	ShardTemplate ShardTemplate
	Disabled      bool
	ConnectorImage string
	Bindings      []MaterializationBinding
}

// MaterializationBinding is a single source/target pair of a materialization.
type MaterializationBinding struct {
	Collection CollectionSpec
	Fields     MaterializationFields
}

// MaterializationFields is the user's field-selection configuration for a binding.
type MaterializationFields struct {
	Require     map[string]FieldConfig
	Exclude     []string
	Recommended RecommendedDepth
}

// FieldConfig is opaque, connector-defined per-field configuration JSON.
type FieldConfig map[string]interface{}

// RecommendedDepth is either a boolean (all/none) or an explicit pointer depth.
type RecommendedDepth struct {
	All   bool
	Depth int // only meaningful if !All and Depth > 0
}

const DekafImagePrefix = "ghcr.io/estuary/dekaf-"

// Task is implemented by each of the three task-shaped catalog specs, and
// captures the common shape the convergence engine and activation
// controller need: a name, a build id, and a shard template.
type Task interface {
	TaskName() string
	TaskType() TaskType
	TaskBuildID() BuildID
	TaskShardTemplate() ShardTemplate
	// HasShards is false for disabled tasks, and for derivations without a
	// `derive` stanza, matching the upstream `has_task_shards` rule.
	HasShards() bool
}

func (c *CaptureSpec) TaskName() string          { return c.Name }
func (c *CaptureSpec) TaskType() TaskType         { return TaskTypeCapture }
func (c *CaptureSpec) TaskBuildID() BuildID       { return c.BuildID }
func (c *CaptureSpec) TaskShardTemplate() ShardTemplate { return c.ShardTemplate }
func (c *CaptureSpec) HasShards() bool {
	return !c.Disabled && !hasDekafPrefix(c.ConnectorImage)
}

func (c *CollectionSpec) TaskName() string  { return c.Name }
func (c *CollectionSpec) TaskType() TaskType { return TaskTypeDerivation }
func (c *CollectionSpec) TaskBuildID() BuildID { return c.BuildID }
func (c *CollectionSpec) TaskShardTemplate() ShardTemplate {
	if c.Derivation == nil {
		return ShardTemplate{}
	}
	return c.Derivation.ShardTemplate
}
func (c *CollectionSpec) HasShards() bool {
	return c.Derivation != nil && !c.Derivation.Disabled
}

func (m *MaterializationSpec) TaskName() string  { return m.Name }
func (m *MaterializationSpec) TaskType() TaskType { return TaskTypeMaterialization }
func (m *MaterializationSpec) TaskBuildID() BuildID { return m.BuildID }
func (m *MaterializationSpec) TaskShardTemplate() ShardTemplate { return m.ShardTemplate }
func (m *MaterializationSpec) HasShards() bool {
	return !m.Disabled && !hasDekafPrefix(m.ConnectorImage)
}

func hasDekafPrefix(image string) bool {
	return len(image) >= len(DekafImagePrefix) && image[:len(DekafImagePrefix)] == DekafImagePrefix
}

// ShardTemplate is the reusable template from which concrete ShardSpecs and
// their paired recovery-log JournalSpecs are stamped, per task generation.
type ShardTemplate struct {
	IDPrefix          string // "{type}/{name}/{hex_generation_id}"
	RecoveryLogPrefix string // "recovery"
	HintPrefix        string
	HintBackups       int32
	HotStandbys       int32
	MaxTxnDuration    int64 // nanoseconds
	MinTxnDuration    int64 // nanoseconds
	Labels            LabelSet
	InitialSplits     int
}

// JournalTemplate is the reusable template for a collection's partitions, or
// for a shard's recovery log.
type JournalTemplate struct {
	NamePrefix  string
	Replication int32
	Compression string
	FlushInterval int64 // nanoseconds
	FragmentLength int64 // bytes
	Retention      int64 // nanoseconds, 0 means forever
	Stores         []string
	Labels         LabelSet
}
