package parser

import (
	"strings"

	"github.com/raphaelgruber/ptflow-importer/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// typeLabels maps equipment labels used in the sheet to exercise types.
// Keys are NFC-normalized and lower-cased.
var typeLabels = map[string]models.ExerciseType{
	"kroppsvekt":     models.TypeWeight,
	"body weight":    models.TypeWeight,
	"bodyweight":     models.TypeWeight,
	"manualer":       models.TypeWeight,
	"manual":         models.TypeWeight,
	"vektstang":      models.TypeWeight,
	"kettlebell":     models.TypeWeight,
	"strikk":         models.TypeBand,
	"treningsstrikk": models.TypeBand,
	"elastikk":       models.TypeBand,
	"tøying":         models.TypeStretch,
	"tøyning":        models.TypeStretch,
	"kondisjon":      models.TypeCardio,
	"balanse":        models.TypeBalance,
	"balansepute":    models.TypeBalance,
}

// focusLabels maps body part labels to focus values.
var focusLabels = map[string]models.Focus{
	"bein":         models.FocusLegs,
	"ben":          models.FocusLegs,
	"lår":          models.FocusLegs,
	"legger":       models.FocusLegs,
	"hofte":        models.FocusHips,
	"sete":         models.FocusHips,
	"mage":         models.FocusCore,
	"kjerne":       models.FocusCore,
	"core":         models.FocusCore,
	"rygg":         models.FocusBack,
	"korsrygg":     models.FocusBack,
	"bryst":        models.FocusChest,
	"skulder":      models.FocusShoulders,
	"skuldre":      models.FocusShoulders,
	"armer":        models.FocusArms,
	"arm":          models.FocusArms,
	"nakke":        models.FocusNeck,
	"hele kroppen": models.FocusFullBody,
	"helkropp":     models.FocusFullBody,
}

// MapType translates an equipment label into an exercise type.
// Unmapped labels fall back to their upper-cased literal; the enum check in
// ParseRow decides whether that is acceptable.
func MapType(label string) models.ExerciseType {
	key := normalize(label)
	if key == "" {
		return ""
	}
	if t, ok := typeLabels[key]; ok {
		return t
	}
	return models.ExerciseType(literal(label))
}

// MapFocus translates a body part label into a focus value, with the same
// upper-case fallback as MapType.
func MapFocus(label string) models.Focus {
	key := normalize(label)
	if key == "" {
		return ""
	}
	if f, ok := focusLabels[key]; ok {
		return f
	}
	return models.Focus(literal(label))
}

func normalize(label string) string {
	s := norm.NFC.String(strings.TrimSpace(label))
	return strings.Join(strings.Fields(cases.Lower(language.Norwegian).String(s)), " ")
}

func literal(label string) string {
	s := norm.NFC.String(strings.TrimSpace(label))
	s = cases.Upper(language.Norwegian).String(s)
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t'
	}), "_")
}
