package tickets

import (
	"math"
	"time"

	"ms-busticketing/internal/config"
)

// RefundPolicy decides how much of a fare is returned on cancellation,
// based on how long before departure the cancellation happens.
type RefundPolicy struct {
	FullBefore     time.Duration
	PartialBefore  time.Duration
	PartialRate    float64
	PartialPenalty float64
}

func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{
		FullBefore:     2 * time.Hour,
		PartialBefore:  time.Hour,
		PartialRate:    0.5,
		PartialPenalty: 10,
	}
}

func RefundPolicyFromConfig(cfg config.TicketConfig) RefundPolicy {
	return RefundPolicy{
		FullBefore:     cfg.FullRefundBefore,
		PartialBefore:  cfg.PartialRefundBefore,
		PartialRate:    cfg.PartialRefundRate,
		PartialPenalty: cfg.PartialPenalty,
	}
}

func (p RefundPolicy) Refund(amount float64, untilDeparture time.Duration) float64 {
	switch {
	case untilDeparture >= p.FullBefore:
		return amount
	case untilDeparture >= p.PartialBefore:
		return roundCents(math.Max(amount*p.PartialRate-p.PartialPenalty, 0))
	default:
		return 0
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
