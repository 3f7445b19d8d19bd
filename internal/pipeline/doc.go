// Package pipeline runs the orchestration loop: it drains the capture queue,
// drives utterance segmentation, submits complete utterances to the
// transcription worker without blocking, and routes recognized text through
// the conversation gatekeeper to the action sink.
package pipeline
