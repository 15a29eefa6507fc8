package optimizer

import "ContentFactory/internal/domain"

var (
	contentReachMultiplier = map[domain.ContentType]float64{
		domain.ContentAIVideo:    1.0,
		domain.ContentTrendShort: 1.2,
		domain.ContentMovieClip:  0.9,
	}
	platformReachMultiplier = map[string]float64{
		"tiktok":    1.3,
		"instagram": 1.0,
		"youtube":   0.9,
	}
	platformEngagement = map[string]float64{
		"tiktok":    0.09,
		"instagram": 0.06,
		"youtube":   0.04,
	}
)

func lookup[K comparable](m map[K]float64, key K, def float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func predictPerformance(slot domain.TimeSlot, ct domain.ContentType, platform string, confidence float64) domain.ExpectedPerformance {
	reach := int(float64(slot.ExpectedReach) *
		lookup(contentReachMultiplier, ct, 1.0) *
		lookup(platformReachMultiplier, platform, 1.0) *
		confidence)
	rate := lookup(platformEngagement, platform, 0.05)
	engaged := int(float64(reach) * rate)

	return domain.ExpectedPerformance{
		PredictedReach:    reach,
		PredictedLikes:    engaged,
		PredictedComments: int(float64(engaged) * 0.15),
		PredictedShares:   int(float64(engaged) * 0.08),
		EngagementRate:    rate * 100,
		ViralProbability:  min(95, int(confidence*85)),
	}
}
