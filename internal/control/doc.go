// Package control provides a trigger-file control surface for the pipeline:
// touching well-known files in a watched directory fires wake, reset, and
// end-conversation actions.
package control
