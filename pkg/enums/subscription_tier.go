package enums

import "fmt"

// SubscriptionTier is the vendor's billing plan.
type SubscriptionTier string

const (
	SubscriptionTierFree       SubscriptionTier = "free"
	SubscriptionTierPro        SubscriptionTier = "pro"
	SubscriptionTierEnterprise SubscriptionTier = "enterprise"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierPro,
	SubscriptionTierEnterprise,
}

// String implements fmt.Stringer.
func (t SubscriptionTier) String() string {
	return string(t)
}

// IsValid reports whether the value is a known SubscriptionTier.
func (t SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
