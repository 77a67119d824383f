package payment

import "strings"

// MapGatewayStatus normalizes a provider status string into the internal
// PaymentStatus vocabulary. Unrecognized statuses map to pending; the
// provider's vocabulary is open-ended and treating an unknown value as
// terminal would strand payments that are still settling. Known risk: a
// genuinely bad status string is also reported as pending.
func MapGatewayStatus(gatewayStatus string) PaymentStatus {
	switch strings.ToLower(gatewayStatus) {
	case "created", "authorized":
		return StatusPending
	case "captured":
		return StatusSuccess
	case "failed":
		return StatusFailed
	case "cancelled":
		return StatusCancelled
	case "refunded":
		return StatusRefunded
	default:
		return StatusPending
	}
}
