// Package intake consumes queued assembly requests from Kafka.
//
// Each message value is a JSON assembly request. The message key, when
// present, is attached to the run context as the correlation id. Messages are
// marked once the run has been attempted, whatever its outcome, because the
// run history already records failures. Only runs interrupted by shutdown are
// left unmarked so the group redelivers them.
package intake
