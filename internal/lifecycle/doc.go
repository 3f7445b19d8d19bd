// Package lifecycle coordinates ordered, timeout-bounded process teardown.
// Components register in startup order and are stopped in reverse, each with
// a graceful path, a per-component timeout, and an optional forced kill.
package lifecycle
