// Package transcriber runs speech-to-text asynchronously with timeout
// isolation. The worker keeps one request in flight, joins each engine call
// with a hard deadline, converts every outcome into exactly one result, and
// exposes rolling latency metrics plus a health predicate.
package transcriber
