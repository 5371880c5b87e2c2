package scout

import (
	"sort"

	"github.com/onnwee/talentboard/internal/talent"
)

// Score bounds of the primary pass: a weighted sum in [0, ~1] mapped onto
// [ScoreBase, ScoreBase+ScoreSpan].
const (
	ScoreBase = 5.0
	ScoreSpan = 5.0
)

// CandidateSignals carries the raw per-candidate aggregates for scoring.
type CandidateSignals struct {
	UserID string

	DollarsEarned float64

	// Distinct matches from winning submissions.
	SubSkillMatches int
	SkillMatches    int

	// Distinct matches from self-reported proof-of-work records.
	PoWMatches int

	Recommended bool

	// Matched is the union of matched skills/subskills recorded on the
	// scout row.
	Matched talent.MatchSet
}

// Ranked is a scored candidate.
type Ranked struct {
	CandidateSignals
	Score float64

	// normalizedDollars is retained because the secondary adjustment and
	// the recommendation term both reuse it.
	normalizedDollars float64
}

// RankCandidates runs the primary scoring pass: each signal is min-max
// normalized within the candidate pool, blended with the configured weights,
// and mapped onto [ScoreBase, ScoreBase+ScoreSpan]. Candidates come back
// sorted descending by score with deterministic tie-breaking.
//
// devListing selects the weight variant: non-dev listings have no top-level
// dev skills to match, so the subskill weight doubles and the skill term is
// dropped.
func RankCandidates(pool []CandidateSignals, w *Weights, devListing bool) []Ranked {
	if w == nil {
		w = DefaultWeights()
	}
	if len(pool) == 0 {
		return nil
	}

	dollars := make(map[string]float64, len(pool))
	subskills := make(map[string]float64, len(pool))
	skills := make(map[string]float64, len(pool))
	pow := make(map[string]float64, len(pool))
	for _, c := range pool {
		dollars[c.UserID] = c.DollarsEarned
		subskills[c.UserID] = float64(c.SubSkillMatches)
		skills[c.UserID] = float64(c.SkillMatches)
		pow[c.UserID] = float64(c.PoWMatches)
	}

	nDollars := Normalize(dollars)
	nSubskills := Normalize(subskills)
	nSkills := Normalize(skills)
	nPoW := Normalize(pow)

	subWeight := w.SubSkills
	if !devListing {
		subWeight = w.SubSkillsNonDev
	}

	out := make([]Ranked, 0, len(pool))
	for _, c := range pool {
		nd := nDollars[c.UserID]

		blended := w.DollarsEarned*nd +
			subWeight*nSubskills[c.UserID] +
			w.ProofOfWork*nPoW[c.UserID]
		if devListing {
			blended += w.Skills * nSkills[c.UserID]
		}
		if c.Recommended {
			// Recommendation amplifies earned dollars rather than acting
			// as an independent signal.
			blended += w.Recommended * nd
		}

		out = append(out, Ranked{
			CandidateSignals:  c,
			Score:             blended*ScoreSpan + ScoreBase,
			normalizedDollars: nd,
		})
	}

	sortRanked(out)
	return out
}

// ApplySecondaryAdjustment re-normalizes the matched skill and subskill
// counts within the final (top-10-bound) pool using the same weight
// coefficients, and adds the result on top of each primary score. The pool
// is re-sorted afterwards.
//
// This second pass intentionally normalizes against the final pool only,
// not the full candidate universe the SQL aggregates saw. It is kept
// isolated so it can be disabled independently.
func ApplySecondaryAdjustment(pool []Ranked, w *Weights, devListing bool) {
	if w == nil {
		w = DefaultWeights()
	}
	if len(pool) == 0 {
		return
	}

	subCounts := make(map[string]float64, len(pool))
	skillCounts := make(map[string]float64, len(pool))
	for _, c := range pool {
		subCounts[c.UserID] = float64(len(c.Matched.SubSkills))
		skillCounts[c.UserID] = float64(len(c.Matched.Skills))
	}

	nSub := Normalize(subCounts)
	nSkill := Normalize(skillCounts)

	subWeight := w.SubSkills
	if !devListing {
		subWeight = w.SubSkillsNonDev
	}

	for i := range pool {
		adj := subWeight * nSub[pool[i].UserID]
		if devListing {
			adj += w.Skills * nSkill[pool[i].UserID]
		}
		pool[i].Score += adj
	}

	sortRanked(pool)
}

// sortRanked orders candidates by score descending, breaking ties by
// dollars earned then user ID for stable output.
func sortRanked(out []Ranked) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DollarsEarned != out[j].DollarsEarned {
			return out[i].DollarsEarned > out[j].DollarsEarned
		}
		return out[i].UserID < out[j].UserID
	})
}
