// Package display coordinates window presentation: it resolves window
// geometry from a message's placement directive and drives the external
// window surface through the queue's current-message changes.
package display
