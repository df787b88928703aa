package main

// Default limits for CLI commands.
const (
	DefaultListLimit    = 50
	DefaultAuditLimit   = 20
	DefaultSimilarLimit = 5
)

// Feed file pattern picked up by ingest and schedule in directory mode.
const DefaultFeedPattern = "*.jsonl"
