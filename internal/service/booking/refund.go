package booking

import "time"

// Refund rates are held in basis points so refund amounts stay in exact
// integer cents.
type refundTier struct {
	minLead     time.Duration
	basisPoints int64
}

var refundTiers = []refundTier{
	{minLead: 72 * time.Hour, basisPoints: 10000},
	{minLead: 48 * time.Hour, basisPoints: 7500},
	{minLead: 24 * time.Hour, basisPoints: 2500},
}

// RefundAmountCents maps cancellation lead time to a refund amount.
// Below 24 hours the cancellation itself is rejected, so ok is false and no
// amount is computed.
func RefundAmountCents(totalAmountCents int64, lead time.Duration) (int64, bool) {
	for _, tier := range refundTiers {
		if lead >= tier.minLead {
			return totalAmountCents * tier.basisPoints / 10000, true
		}
	}
	return 0, false
}

// PolicyTier is one row of the static cancellation policy table.
type PolicyTier struct {
	HoursBefore       int    `json:"hours_before"`
	RefundRatePercent int    `json:"refund_rate_percent"`
	Description       string `json:"description"`
}

// CancellationPolicy returns the tier table exposed to callers.
func CancellationPolicy() []PolicyTier {
	return []PolicyTier{
		{HoursBefore: 72, RefundRatePercent: 100, Description: "cancel at least 72 hours ahead for a full refund"},
		{HoursBefore: 48, RefundRatePercent: 75, Description: "cancel 48-72 hours ahead for a 75% refund"},
		{HoursBefore: 24, RefundRatePercent: 25, Description: "cancel 24-48 hours ahead for a 25% refund"},
		{HoursBefore: 0, RefundRatePercent: 0, Description: "cancellations under 24 hours ahead are rejected"},
	}
}

// TotalAmountCents prices an interval at the room's hourly rate, computed on
// seconds so fractional hours stay exact in integer cents.
func TotalAmountCents(pricePerHourCents int64, start, end time.Time) int64 {
	seconds := int64(end.Sub(start) / time.Second)
	return pricePerHourCents * seconds / 3600
}
