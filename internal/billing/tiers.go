// Package billing integrates Stripe subscriptions: checkout and portal
// session creation plus webhook-driven subscription state.
package billing

// Tier is a subscription plan level.
type Tier string

const (
	TierFree   Tier = "free"
	TierPro    Tier = "pro"
	TierStudio Tier = "studio"
)

// Limits are the feature gates attached to a tier.
type Limits struct {
	// MonthlyCredits is the generation credit allowance granted each
	// billing period.
	MonthlyCredits int
	// MaxWidth and MaxHeight cap generated thumbnail resolution.
	MaxWidth  int
	MaxHeight int
	// CustomAssets gates creation of user styles, palettes, and faces.
	CustomAssets bool
}

var tierLimits = map[Tier]Limits{
	TierFree:   {MonthlyCredits: 10, MaxWidth: 640, MaxHeight: 360, CustomAssets: false},
	TierPro:    {MonthlyCredits: 200, MaxWidth: 1280, MaxHeight: 720, CustomAssets: true},
	TierStudio: {MonthlyCredits: 1000, MaxWidth: 1920, MaxHeight: 1080, CustomAssets: true},
}

// LimitsFor returns the limits for a tier. Unknown tiers get free limits.
func LimitsFor(tier Tier) Limits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[TierFree]
}

// ValidTier reports whether tier names a known plan.
func ValidTier(tier Tier) bool {
	_, ok := tierLimits[tier]
	return ok
}
