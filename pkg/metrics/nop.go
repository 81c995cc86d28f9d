package metrics

import "time"

// Nop discards everything. Used in tests and when metrics are disabled.
type Nop struct{}

func (Nop) RecordCacheRequest(string, bool)        {}
func (Nop) RecordScanPass(time.Duration, int, int) {}
func (Nop) RecordCandidate(string)                 {}
func (Nop) SetPending(int)                         {}
func (Nop) RecordDecision(string)                  {}
func (Nop) SetMonitored(string, int)               {}
func (Nop) RecordFetchError(string, string)        {}
func (Nop) RecordLatency(string, float64)          {}
func (Nop) RecordError(string)                     {}
