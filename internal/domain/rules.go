package domain

import (
	"fmt"
	"strings"
)

// NutrientCeiling is one per-serving limit monitored for a chronic condition.
type NutrientCeiling struct {
	Key   NutrientKey `yaml:"key" json:"key" validate:"required"`
	Limit float64     `yaml:"limit" json:"limit" validate:"gt=0"`
}

// RulesConfig tunes the deterministic constraint evaluation.
type RulesConfig struct {
	// CautionBand is the fraction below a ceiling at which a value already
	// earns a caution flag. 0.2 means caution starts at 80% of the ceiling.
	CautionBand float64 `yaml:"caution_band" json:"caution_band" validate:"gte=0,lt=1"`

	// LowConfidence is the confidence below which a fused value is treated
	// as unreliable for danger classification.
	LowConfidence float64 `yaml:"low_confidence" json:"low_confidence" validate:"gte=0,lte=1"`

	// ConditionCeilings maps a chronic condition tag to the per-serving
	// nutrient ceilings monitored for it.
	ConditionCeilings map[string][]NutrientCeiling `yaml:"condition_ceilings" json:"condition_ceilings"`

	// AllergenKeywords maps an allergen tag to the ingredient keywords that
	// indicate its presence.
	AllergenKeywords map[string][]string `yaml:"allergen_keywords" json:"allergen_keywords"`
}

// DefaultRulesConfig returns the standard rule set: per-serving condition
// ceilings matching common dietary guidance and a keyword vocabulary for the
// major allergen groups.
func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		CautionBand:   0.2,
		LowConfidence: 0.5,
		ConditionCeilings: map[string][]NutrientCeiling{
			"hypertension": {
				{Key: NutrientSodiumMg, Limit: 400},
			},
			"diabetes": {
				{Key: NutrientSugarsG, Limit: 15},
			},
			"high_cholesterol": {
				{Key: NutrientCholesterolMg, Limit: 60},
				{Key: NutrientSaturatedFatG, Limit: 5},
			},
			"obesity": {
				{Key: NutrientFatG, Limit: 15},
				{Key: NutrientEnergyKcal, Limit: 500},
			},
		},
		AllergenKeywords: map[string][]string{
			"nuts":      {"peanut", "almond", "cashew", "walnut", "hazelnut", "pecan", "pistachio", "macadamia"},
			"dairy":     {"milk", "cheese", "whey", "casein", "butter", "cream", "lactose", "yogurt"},
			"gluten":    {"wheat", "barley", "rye", "malt", "gluten", "semolina"},
			"soy":       {"soy", "soya", "soybean"},
			"eggs":      {"egg", "albumin"},
			"shellfish": {"shrimp", "crab", "lobster", "prawn", "shellfish"},
			"fish":      {"fish", "anchovy", "salmon", "tuna", "cod", "sardine"},
		},
	}
}

// RuleEvaluator applies the deterministic health-constraint rules to a fused
// profile. Evaluation is a pure function: the same profile, ingredients and
// user profile always produce the same flags, in the same order.
type RuleEvaluator struct {
	config RulesConfig
}

// NewRuleEvaluator creates a RuleEvaluator with validated configuration.
func NewRuleEvaluator(config RulesConfig) (*RuleEvaluator, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("rules configuration: %w", err)
	}
	for tag, ceilings := range config.ConditionCeilings {
		for _, c := range ceilings {
			if _, ok := canonicalUnits[c.Key]; !ok {
				return nil, fmt.Errorf("rules configuration: condition %q monitors unknown nutrient %q", tag, c.Key)
			}
			if c.Limit <= 0 {
				return nil, fmt.Errorf("rules configuration: condition %q has non-positive limit for %q", tag, c.Key)
			}
		}
	}
	return &RuleEvaluator{config: config}, nil
}

// Evaluate runs allergen, condition and goal rules in that fixed order and
// returns the findings sorted by severity descending. Allergen matches and
// ceiling breaches emit danger regardless of confidence; a low-confidence or
// conflicted reading only adds a caution where the rule would otherwise stay
// silent; goal rules emit info only.
func (e *RuleEvaluator) Evaluate(profile FusedNutritionProfile, ingredients string, user UserHealthProfile) []Flag {
	var flags []Flag
	flags = append(flags, e.allergenFlags(ingredients, user)...)
	flags = append(flags, e.conditionFlags(profile, user)...)
	flags = append(flags, e.goalFlags(profile, user)...)
	return SortFlags(flags)
}

func (e *RuleEvaluator) allergenFlags(ingredients string, user UserHealthProfile) []Flag {
	if ingredients == "" {
		return nil
	}
	folded := foldCaser.String(ingredients)

	var flags []Flag
	for _, allergen := range user.Allergies {
		tag := normalizeTag(allergen)
		keywords := e.config.AllergenKeywords[tag]
		if len(keywords) == 0 {
			// Unknown allergen tags still match their own name.
			keywords = []string{tag}
		}
		for _, kw := range keywords {
			if strings.Contains(folded, foldCaser.String(kw)) {
				flags = append(flags, Flag{
					NutrientKey: tag,
					Severity:    SeverityDanger,
					Reason:      fmt.Sprintf("Ingredients contain %q, which matches your %s allergy", kw, allergen),
				})
				break
			}
		}
	}
	return flags
}

func (e *RuleEvaluator) conditionFlags(profile FusedNutritionProfile, user UserHealthProfile) []Flag {
	var flags []Flag
	for _, condition := range user.ChronicConditions {
		tag := normalizeTag(condition)
		ceilings, ok := e.config.ConditionCeilings[tag]
		if !ok {
			continue
		}
		for _, ceiling := range ceilings {
			flags = append(flags, e.checkCeiling(profile, condition, ceiling)...)
		}
	}
	return flags
}

// checkCeiling classifies one monitored nutrient against its condition
// ceiling. A missing monitored nutrient emits caution rather than silence:
// the user must know the value could not be verified.
func (e *RuleEvaluator) checkCeiling(profile FusedNutritionProfile, condition string, ceiling NutrientCeiling) []Flag {
	fused, present := profile[ceiling.Key]
	if !present {
		return []Flag{{
			NutrientKey: string(ceiling.Key),
			Severity:    SeverityCaution,
			Reason:      fmt.Sprintf("%s could not be determined from the available data; it is monitored for %s", nutrientLabel(ceiling.Key), condition),
		}}
	}

	unreliable := fused.Conflict || fused.Confidence < e.config.LowConfidence
	cautionFloor := ceiling.Limit * (1 - e.config.CautionBand)

	switch {
	case fused.Value > ceiling.Limit:
		// A breach is danger no matter how shaky the reading; an unreliable
		// reading annotates the reason but never softens the severity.
		reason := fmt.Sprintf("%s is %s per serving, above the %s limit monitored for %s",
			nutrientLabel(ceiling.Key), formatAmount(fused.Value, fused.Unit), formatAmount(ceiling.Limit, fused.Unit), condition)
		if unreliable {
			reason += " (reading is low confidence)"
		}
		return []Flag{{NutrientKey: string(ceiling.Key), Severity: SeverityDanger, Reason: reason}}
	case fused.Value >= cautionFloor:
		return []Flag{{
			NutrientKey: string(ceiling.Key),
			Severity:    SeverityCaution,
			Reason: fmt.Sprintf("%s is %s per serving, close to the %s limit monitored for %s",
				nutrientLabel(ceiling.Key), formatAmount(fused.Value, fused.Unit), formatAmount(ceiling.Limit, fused.Unit), condition),
		}}
	case unreliable:
		return []Flag{{
			NutrientKey: string(ceiling.Key),
			Severity:    SeverityCaution,
			Reason: fmt.Sprintf("%s reading is low confidence; it is monitored for %s",
				nutrientLabel(ceiling.Key), condition),
		}}
	default:
		return nil
	}
}

func (e *RuleEvaluator) goalFlags(profile FusedNutritionProfile, user UserHealthProfile) []Flag {
	var flags []Flag
	if user.CalorieGoal > 0 {
		if energy, ok := profile[NutrientEnergyKcal]; ok && energy.Value > float64(user.CalorieGoal)/3 {
			flags = append(flags, Flag{
				NutrientKey: string(NutrientEnergyKcal),
				Severity:    SeverityInfo,
				Reason: fmt.Sprintf("One serving provides %s, more than a third of your %d kcal daily goal",
					formatAmount(energy.Value, UnitKcal), user.CalorieGoal),
			})
		}
	}
	for _, goal := range user.Goals {
		if normalizeTag(goal) != "weight_management" {
			continue
		}
		if sugars, ok := profile[NutrientSugarsG]; ok && sugars.Value > 10 {
			flags = append(flags, Flag{
				NutrientKey: string(NutrientSugarsG),
				Severity:    SeverityInfo,
				Reason: fmt.Sprintf("Sugars are %s per serving, worth noting for your weight management goal",
					formatAmount(sugars.Value, sugars.Unit)),
			})
		}
	}
	return flags
}

// normalizeTag folds user-supplied tags like "High Cholesterol" to the
// underscore form used as config keys.
func normalizeTag(tag string) string {
	return strings.Join(strings.Fields(foldCaser.String(strings.TrimSpace(tag))), "_")
}

// nutrientLabel renders a canonical key as readable text ("saturated fat").
func nutrientLabel(key NutrientKey) string {
	s := string(key)
	for _, suffix := range []string{"_g", "_mg", "_kcal"} {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.ReplaceAll(s, "_", " ")
	if s == "energy" {
		return "calories"
	}
	return s
}

func formatAmount(value float64, unit Unit) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), ".") + " " + string(unit)
}
