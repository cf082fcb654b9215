package exchange

import (
	"strings"

	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// periodSpellings maps every known roster label to its canonical period.
// Historical plannings mix French and English labels with single-letter
// roster abbreviations, so the table is deliberately generous.
var periodSpellings = map[string]models.Period{
	"matin":      models.PeriodMorning,
	"m":          models.PeriodMorning,
	"morning":    models.PeriodMorning,
	"morn":       models.PeriodMorning,
	"apres-midi": models.PeriodAfternoon,
	"apres midi": models.PeriodAfternoon,
	"apresmidi":  models.PeriodAfternoon,
	"aprem":      models.PeriodAfternoon,
	"am":         models.PeriodAfternoon,
	"afternoon":  models.PeriodAfternoon,
	"soir":       models.PeriodEvening,
	"soiree":     models.PeriodEvening,
	"s":          models.PeriodEvening,
	"evening":    models.PeriodEvening,
	"eve":        models.PeriodEvening,
}

var accentFolder = strings.NewReplacer("é", "e", "è", "e", "ê", "e", "à", "a", "â", "a", "î", "i")

// foldPeriod lowers case and strips the accents that appear in French labels
// so that "Après-midi" and "apres-midi" hit the same table entry.
func foldPeriod(raw string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// NormalizePeriod maps any known spelling of a time-of-day label to its
// canonical period. Unrecognized input defaults to Morning. That default is a
// deliberate leniency for garbage historical data, not an accident: callers
// that need strict validation must check RecognizedPeriod first.
func NormalizePeriod(raw string) models.Period {
	if p, ok := periodSpellings[foldPeriod(raw)]; ok {
		return p
	}
	return models.PeriodMorning
}

// RecognizedPeriod reports whether raw is a known period spelling.
func RecognizedPeriod(raw string) bool {
	_, ok := periodSpellings[foldPeriod(raw)]
	return ok
}

// PeriodsEquivalent reports whether two raw labels normalize to the same
// canonical period even when their literal text differs.
func PeriodsEquivalent(a, b string) bool {
	return NormalizePeriod(a) == NormalizePeriod(b)
}
