package labels

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/estuary/data-plane-core/go/catalog"
)

// PortConfig describes a single exposed container port of a task shard.
type PortConfig struct {
	ContainerPort uint16
	Protocol      string
	Public        bool
}

// ShardLabeling is a parsed and validated representation of the labels
// attached to a ShardSpec, understood by the convergence engine and
// activation controller.
type ShardLabeling struct {
	Build       string
	Hostname    string
	LogLevel    LogLevel
	Range       catalog.RangeSpec
	SplitSource string
	SplitTarget string
	TaskName    string
	TaskType    catalog.TaskType
	Ports       map[uint16]*PortConfig
}

// ParseShardLabels parses and validates a ShardLabeling from a LabelSet.
func ParseShardLabels(set catalog.LabelSet) (ShardLabeling, error) {
	var out ShardLabeling
	var err error

	if out.Range, err = ParseRangeSpec(set); err != nil {
		return out, err
	}
	if out.SplitSource, err = MaybeOne(set, SplitSource); err != nil {
		return out, err
	}
	if out.SplitTarget, err = MaybeOne(set, SplitTarget); err != nil {
		return out, err
	}
	if out.Build, err = ExpectOne(set, Build); err != nil {
		return out, err
	}
	if out.Hostname, err = MaybeOne(set, Hostname); err != nil {
		return out, err
	}
	level, err := MaybeOne(set, LogLevelLabel)
	if err != nil {
		return out, err
	}
	out.LogLevel = LogLevel(level)
	if out.TaskName, err = ExpectOne(set, TaskName); err != nil {
		return out, err
	}
	taskType, err := ExpectOne(set, TaskType)
	if err != nil {
		return out, err
	}
	switch catalog.TaskType(taskType) {
	case catalog.TaskTypeCapture, catalog.TaskTypeDerivation, catalog.TaskTypeMaterialization:
		out.TaskType = catalog.TaskType(taskType)
	default:
		return out, fmt.Errorf("unknown task type %q", taskType)
	}

	if out.SplitSource != "" && out.SplitTarget != "" {
		return out, fmt.Errorf(
			"both split-source %q and split-target %q are set but shouldn't be",
			out.SplitSource, out.SplitTarget)
	}

	if out.Ports, err = parsePorts(set); err != nil {
		return out, err
	}

	return out, nil
}

func parsePorts(set catalog.LabelSet) (map[uint16]*PortConfig, error) {
	var out = make(map[uint16]*PortConfig)
	ensure := func(port uint16) *PortConfig {
		if c, ok := out[port]; ok {
			return c
		}
		var c = &PortConfig{ContainerPort: port}
		out[port] = c
		return c
	}

	for _, l := range set.Labels {
		switch {
		case l.Name == ExposePort:
			port, err := strconv.ParseUint(l.Value, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid value for %q: %q", ExposePort, l.Value)
			}
			ensure(uint16(port))
		case strings.HasPrefix(l.Name, PortProtoPrefix):
			port, err := strconv.ParseUint(l.Name[len(PortProtoPrefix):], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid port in label %q", l.Name)
			}
			ensure(uint16(port)).Protocol = l.Value
		case strings.HasPrefix(l.Name, PortPublicPrefix):
			port, err := strconv.ParseUint(l.Name[len(PortPublicPrefix):], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid port in label %q", l.Name)
			}
			ensure(uint16(port)).Public = l.Value == "true"
		}
	}
	return out, nil
}

// ShardIDPrefix returns the invariant prefix of every shard id belonging to
// the (taskType, taskName) pair at the given generation: "{type}/{name}/{hex_generation_id}".
func ShardIDPrefix(taskType catalog.TaskType, taskName string, generationID uint64) string {
	return fmt.Sprintf("%s/%s/%016x", taskType, taskName, generationID)
}

// ShardID returns the complete shard id for the given prefix and range:
// "{id_prefix}/{hex_key_begin}-{hex_rclock_begin}".
func ShardID(idPrefix string, r catalog.RangeSpec) string {
	return fmt.Sprintf("%s/%08x-%08x", idPrefix, r.KeyBegin, r.RClockBegin)
}

// ShardSuffix is the suffix of a shard id implied by the LabelSet's range:
// "{hex_key_begin}-{hex_rclock_begin}".
func ShardSuffix(set catalog.LabelSet) (string, error) {
	keyBegin, err := ExpectOne(set, KeyBegin)
	if err != nil {
		return "", err
	}
	rclockBegin, err := ExpectOne(set, RClockBegin)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", keyBegin, rclockBegin), nil
}

// RecoveryLogName returns the recovery log journal name for a shard id:
// "recovery/{shard_id}".
func RecoveryLogName(shardID string) string {
	return "recovery/" + shardID
}
