package ops

import (
	"encoding/json"

	"github.com/estuary/data-plane-core/go/labels"
	"github.com/sirupsen/logrus"
)

// LocalPublisher publishes ops Logs to the local process stderr via logrus.
type LocalPublisher struct {
	labels labels.ShardLabeling
}

var _ Publisher = &LocalPublisher{}

// NewLocalPublisher returns a LocalPublisher for the given shard labeling.
// If the labeling doesn't specify a log level, the logrus standard
// logger's current level is used instead.
func NewLocalPublisher(labeling labels.ShardLabeling) *LocalPublisher {
	if labeling.LogLevel == labels.LogLevelUndefined {
		labeling.LogLevel = logrusLogLevel()
	}
	return &LocalPublisher{labeling}
}

func (p *LocalPublisher) Labels() labels.ShardLabeling { return p.labels }

func (*LocalPublisher) PublishLog(log Log) {
	var level logrus.Level
	switch log.Level {
	case labels.LogLevelTrace:
		level = logrus.TraceLevel
	case labels.LogLevelDebug:
		level = logrus.DebugLevel
	case labels.LogLevelInfo:
		level = logrus.InfoLevel
	case labels.LogLevelWarn:
		level = logrus.WarnLevel
	default:
		level = logrus.ErrorLevel
	}

	var fields logrus.Fields
	if err := json.Unmarshal(log.Fields, &fields); err != nil {
		logrus.WithFields(logrus.Fields{
			"error":  err,
			"fields": string(log.Fields),
		}).Error("failed to unmarshal log fields")
	}
	logrus.StandardLogger().WithFields(fields).Log(level, log.Message)
}

// logrusLogLevel maps the current level of the logrus standard logger into
// a labels.LogLevel.
func logrusLogLevel() labels.LogLevel {
	switch logrus.StandardLogger().Level {
	case logrus.TraceLevel:
		return labels.LogLevelTrace
	case logrus.DebugLevel:
		return labels.LogLevelDebug
	case logrus.InfoLevel:
		return labels.LogLevelInfo
	case logrus.WarnLevel:
		return labels.LogLevelWarn
	default:
		return labels.LogLevelError
	}
}
