// Package conversation implements the wake-word activation state machine that
// gates dispatch of recognized text. While idle, all speech is ignored;
// activation, follow-up, interruption, and timeout policy decide when a
// transcript may be acted on.
package conversation
