// Package audio handles microphone capture, chunk buffering, utterance
// segmentation, and format conversion. It implements a bounded drop-on-full
// capture queue, energy-based voice activity segmentation with sample-count
// duration accounting, and WAV encoding for transcription upload.
package audio
