// Package asr defines the speech-to-text engine interface and its backends.
// Backends are selected once at startup by configuration: an HTTP backend for
// self-hosted whisper-server style endpoints and an OpenAI API backend.
package asr
