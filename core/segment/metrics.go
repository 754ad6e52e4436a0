package segment

import "github.com/ethereum/go-ethereum/metrics"

var (
	unitCounter        = metrics.NewRegisteredCounter("segment/units", nil)
	skippedUnitCounter = metrics.NewRegisteredCounter("segment/units/skipped", nil)
	failedPathCounter  = metrics.NewRegisteredCounter("segment/paths/failed", nil)
	invalidJumpCounter = metrics.NewRegisteredCounter("segment/paths/invalidjump", nil)
	overlapCounter     = metrics.NewRegisteredCounter("segment/overlaps", nil)
	cacheHitCounter    = metrics.NewRegisteredCounter("segment/cache/hit", nil)
	cacheMissCounter   = metrics.NewRegisteredCounter("segment/cache/miss", nil)
)
