package scout

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights holds the blending coefficients for the scoring signals.
//
// DollarsEarned dominates because paid outcomes are the strongest evidence;
// proof-of-work matches are self-reported and weigh least. Recommended is
// not an independent axis: it scales the candidate's normalized dollars.
type Weights struct {
	DollarsEarned   float64 `json:"dollars_earned"`    // default: 0.25
	SubSkills       float64 `json:"sub_skills"`        // default: 0.20
	SubSkillsNonDev float64 `json:"sub_skills_nondev"` // default: 0.40, replaces SubSkills+Skills on non-dev listings
	Skills          float64 `json:"skills"`            // default: 0.20, dev listings only
	ProofOfWork     float64 `json:"proof_of_work"`     // default: 0.05
	Recommended     float64 `json:"recommended"`       // default: 0.30
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight overrides
}

// DefaultWeights returns the default scoring weight configuration.
//
// Dev listing formula:
//
//	score = (dollars*0.25 + subskills*0.20 + skills*0.20 + pow*0.05 + rec) * 5 + 5
//
// where rec = normalized_dollars * 0.30 for editorially recommended users,
// 0 otherwise. Non-dev listings drop the skills term and raise the subskill
// weight to 0.40.
func DefaultWeights() *Weights {
	return &Weights{
		DollarsEarned:   0.25,
		SubSkills:       0.20,
		SubSkillsNonDev: 0.40,
		Skills:          0.20,
		ProofOfWork:     0.05,
		Recommended:     0.30,
	}
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// If the file doesn't exist or can't be parsed, returns default weights with
// an error so callers degrade gracefully. Partial configurations are merged
// with defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read scout calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse scout calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights. Only non-zero
// override values are applied, allowing partial calibration files.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base

	if override.DollarsEarned != 0 {
		result.DollarsEarned = override.DollarsEarned
	}
	if override.SubSkills != 0 {
		result.SubSkills = override.SubSkills
	}
	if override.SubSkillsNonDev != 0 {
		result.SubSkillsNonDev = override.SubSkillsNonDev
	}
	if override.Skills != 0 {
		result.Skills = override.Skills
	}
	if override.ProofOfWork != 0 {
		result.ProofOfWork = override.ProofOfWork
	}
	if override.Recommended != 0 {
		result.Recommended = override.Recommended
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	check := func(name string, def, got float64) {
		if got != def {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", name, def, got))
		}
	}
	check("dollars_earned", defaults.DollarsEarned, loaded.DollarsEarned)
	check("sub_skills", defaults.SubSkills, loaded.SubSkills)
	check("sub_skills_nondev", defaults.SubSkillsNonDev, loaded.SubSkillsNonDev)
	check("skills", defaults.Skills, loaded.Skills)
	check("proof_of_work", defaults.ProofOfWork, loaded.ProofOfWork)
	check("recommended", defaults.Recommended, loaded.Recommended)

	if len(overrides) > 0 {
		slog.Info("loaded scout calibration with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded scout calibration (using all defaults)")
	}
}
