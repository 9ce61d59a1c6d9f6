package recommend

import (
	"peerlink/internal/model"
	"peerlink/internal/util"
)

// CombinedInterests is the user's declared interest tags plus keywords from their bio.
func CombinedInterests(u model.User, stop map[string]struct{}) map[string]struct{} {
	set := util.NormalizeInterests(u.Interests)
	for k := range util.ExtractBioKeywords(u.Bio, stop) {
		set[k] = struct{}{}
	}
	return set
}

// InterestSimilarity returns the number of shared interest terms and the
// Jaccard coefficient of the two combined sets. Either set being empty yields (0, 0).
func InterestSimilarity(a, b model.User, stop map[string]struct{}) (common int, score float64) {
	return jaccard(CombinedInterests(a, stop), CombinedInterests(b, stop))
}

func jaccard(a, b map[string]struct{}) (int, float64) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	common := intersectCount(a, b)
	union := len(a) + len(b) - common
	return common, float64(common) / float64(union)
}
