package stage

// Boost tiers unlock increased promotional email reach as a listing's USD
// value grows. Tier thresholds and reach multipliers are platform policy;
// sponsors move up a tier by raising the listing value.
type BoostTier int

const (
	BoostTierBase BoostTier = iota
	BoostTierPlus
	BoostTierPro
	BoostTierMax
)

// tierThresholdsUSD is the minimum listing value for each tier.
var tierThresholdsUSD = [...]float64{
	BoostTierBase: 0,
	BoostTierPlus: 1000,
	BoostTierPro:  3000,
	BoostTierMax:  5000,
}

// tierReachMultiplier scales the base audience estimate per tier.
var tierReachMultiplier = [...]float64{
	BoostTierBase: 1.0,
	BoostTierPlus: 1.5,
	BoostTierPro:  2.25,
	BoostTierMax:  3.0,
}

// materialReachGain is the minimum extra estimated impressions a higher tier
// must add before the sponsor is prompted to boost.
const materialReachGain = 1000

// TierForValue returns the boost tier a listing's USD value qualifies for.
func TierForValue(usd float64) BoostTier {
	tier := BoostTierBase
	for t := BoostTierBase; t <= BoostTierMax; t++ {
		if usd >= tierThresholdsUSD[t] {
			tier = t
		}
	}
	return tier
}

// ReachAtTier returns the estimated impressions at a tier given the base
// audience estimate.
func ReachAtTier(baseEstimate int, tier BoostTier) int {
	return int(float64(baseEstimate) * tierReachMultiplier[tier])
}

// BoostWorthwhile reports whether moving up from the current tier would add
// a material number of estimated impressions. Listings already at the top
// tier never qualify.
func BoostWorthwhile(baseEstimate int, current BoostTier) bool {
	if current >= BoostTierMax {
		return false
	}
	gain := ReachAtTier(baseEstimate, current+1) - ReachAtTier(baseEstimate, current)
	return gain >= materialReachGain
}
