// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import "log"

// Config tunes a FrameGraph's resource pool and staging behavior,
// following the teacher's Config/DefaultConfig/Configure pattern
// (engine/engine.go): a plain struct with documented zero-value
// defaults. Unlike engine.Config, this is applied per-FrameGraph
// rather than through a single package-level var, since a process may
// legitimately run more than one FrameGraph at once (one per
// swapchain, per §1) and a shared global would make them interfere.
type Config struct {
	// StagingRingChunks is the number of stagingBlock-sized chunks a
	// single staging ring buffer holds before the uploader grows a
	// new ring.
	//
	// Default is 32 (one bitm.Bitm[uint32] extent).
	StagingRingChunks int
}

// DefaultConfig returns the configuration NewFrameGraph uses when none
// is given.
func DefaultConfig() Config {
	return Config{StagingRingChunks: stagingRingChunks}
}

func (c *Config) setDefaults() {
	if c.StagingRingChunks <= 0 {
		c.StagingRingChunks = stagingRingChunks
	}
}

// Logger is called to report a dropped frame: a Build or Execute
// failure naming the faulting node and pin (§7). It defaults to the
// standard library logger, matching driver.Register's direct
// log.Printf use (driver/driver.go) rather than a third-party logging
// dependency the teacher never reaches for. Tests may replace it to
// capture output instead of writing to stderr.
var Logger = func(format string, args ...any) { log.Printf(format, args...) }
