// Package notifications pushes run outcomes to ntfy.
//
// NewNotifier publishes to the topic URL configured in the [notifications]
// section and degrades to a no-op when no topic is set. Reporter adapts a
// Notifier to assembly.Reporter so the assembler can fan run results out to
// ntfy next to the run store without knowing about HTTP.
package notifications
