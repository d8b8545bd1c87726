package lazyarray

import "github.com/sirupsen/logrus"

// LoggingSubscriber turns every bus event into a structured log line via
// logrus, the pack's converging choice for a leveled, field-carrying
// logger (dragonflyoss-nydus's snapshotter depends on it directly). It is
// entirely opt-in: the core array never logs on its own, exactly like the
// teacher's archive package, which reports state only through return
// values.
type LoggingSubscriber struct {
	NoopSubscriber
	log *logrus.Entry
}

// NewLoggingSubscriber wraps log, or the standard logger if log is nil.
func NewLoggingSubscriber(log *logrus.Entry) *LoggingSubscriber {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LoggingSubscriber{log: log}
}

func (l *LoggingSubscriber) OnFileCreated() {
	l.log.Info("lazyarray: file created")
}

func (l *LoggingSubscriber) OnCacheMiss(index int) {
	l.log.WithField("index", index).Debug("lazyarray: cache miss")
}

func (l *LoggingSubscriber) OnRecordSerialized(index int) {
	l.log.WithField("index", index).Trace("lazyarray: record serialized")
}

func (l *LoggingSubscriber) OnRecordDeserialized(index int) {
	l.log.WithField("index", index).Trace("lazyarray: record deserialized")
}

func (l *LoggingSubscriber) OnChunkSerialized() {
	l.log.Debug("lazyarray: chunk flushed")
}

func (l *LoggingSubscriber) OnChunkDeserialized() {
	l.log.Debug("lazyarray: chunk loaded")
}

func (l *LoggingSubscriber) OnWriteCollision(prior, incoming int) {
	l.log.WithFields(logrus.Fields{"prior": prior, "incoming": incoming}).Warn("lazyarray: write collision")
}

func (l *LoggingSubscriber) OnChunkResized(kind ChunkKind, prior, next int) {
	l.log.WithFields(logrus.Fields{"kind": kind.String(), "prior": prior, "next": next}).Info("lazyarray: chunk resized")
}
