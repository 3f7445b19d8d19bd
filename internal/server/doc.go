// Package server implements the HTTP API for monitoring the voice pipeline.
// It exposes health, statistics, conversation state and Prometheus metrics
// endpoints.
package server
