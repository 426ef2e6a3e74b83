package wire

import (
	"math/rand"
	"time"
)

// NextBackoffDelay returns how long the dialer waits before attempt+1. Attempt
// counts from 1. The delay grows by Multiplier per attempt and stops at MaxDelay;
// with Jitter it is scaled into [0.5, 1.5) using rng, or halved when rng is nil.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	mult := max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if cfg.MaxDelay > 0 && delay >= float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
			break
		}
	}
	if attempt > 1 && cfg.Jitter {
		scale := 0.5
		if rng != nil {
			scale += rng.Float64()
		}
		delay *= scale
	}
	return time.Duration(delay)
}
