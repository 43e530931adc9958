// Package idcard turns the OCR lines of a Romanian identity card into an
// identity record by anchoring on the printed field labels.
package idcard

import (
	"regexp"

	"idscan/pkg/models"
)

// Strategy selects how a field's value is read relative to its label line.
type Strategy int

const (
	// SameLineOrNext reads the text after the label, or failing that joins
	// the following lines up to the window.
	SameLineOrNext Strategy = iota

	// SingleToken reads one short token such as the "M" of the sex field.
	// The scan skips caption lines and is not bounded by the window.
	SingleToken

	// BoundedBlock joins the following lines until a stop keyword.
	BoundedBlock
)

func (s Strategy) String() string {
	switch s {
	case SameLineOrNext:
		return "same-line-or-next-lines"
	case SingleToken:
		return "single-token"
	case BoundedBlock:
		return "bounded-block"
	default:
		return "unknown"
	}
}

// DefaultWindow is the number of lines scanned after a label.
const DefaultWindow = 3

// LabelSpec describes where a field sits on the card.
type LabelSpec struct {
	Field    string
	Variants []string
	Strategy Strategy

	// Window bounds the lines scanned after the label. Zero means DefaultWindow.
	Window int

	// AllowLabelSkip lets the scan step over one foreign label line, and
	// widens the window by one to make room for it.
	AllowLabelSkip bool

	// Noise lines are skipped during the scan.
	Noise *regexp.Regexp

	// Skip lines are skipped during the scan.
	Skip []*regexp.Regexp

	// Stop ends a bounded block. Matched against folded text.
	Stop *regexp.Regexp
}

func (l LabelSpec) window() int {
	w := l.Window
	if w <= 0 {
		w = DefaultWindow
	}
	if l.AllowLabelSkip {
		w++
	}
	return w
}

var addressStop = regexp.MustCompile(`\b(EMISA|EMIS|DELIVREE|ISSUED BY|VALABILITATE|VALIDITE|VALIDITY|CNP|SERIA|NUME|PRENUME|LOC NASTERE)\b`)

// Labels is the card layout: every labelled field with its printed variants.
var Labels = []LabelSpec{
	{
		Field:    models.FieldLastName,
		Variants: []string{"Nume", "Nom", "Last name", "Nume/Nom", "Nume/Nom/Last name"},
		Strategy: SameLineOrNext,
	},
	{
		Field:    models.FieldFirstName,
		Variants: []string{"Prenume", "Prenom", "First name", "Prenume/Prenom", "Prenume/Prenom/First name"},
		Strategy: SameLineOrNext,
	},
	{
		Field:    models.FieldSex,
		Variants: []string{"Sex", "Sexe"},
		Strategy: SingleToken,
	},
	{
		Field:          models.FieldNationality,
		Variants:       []string{"Cetatenie", "Cetățenie", "Nationalite", "Nationality"},
		Strategy:       SameLineOrNext,
		AllowLabelSkip: true,
		Noise:          sexToken,
	},
	{
		Field:    models.FieldCNP,
		Variants: []string{"CNP"},
		Strategy: SameLineOrNext,
	},
	{
		Field:          models.FieldBirthPlace,
		Variants:       []string{"Loc nastere", "Locul nasterii", "Lieu de naissance", "Place of birth"},
		Strategy:       SameLineOrNext,
		AllowLabelSkip: true,
	},
	{
		Field:    models.FieldAddress,
		Variants: []string{"Domiciliu", "Domicile", "Adresse", "Address"},
		Strategy: BoundedBlock,
		Stop:     addressStop,
	},
	{
		Field:          models.FieldIssuedBy,
		Variants:       []string{"Emisa de", "Emis de", "Delivree par", "Issued by"},
		Strategy:       SameLineOrNext,
		AllowLabelSkip: true,
		Skip:           []*regexp.Regexp{dateToken},
	},
	{
		Field:    models.FieldValidity,
		Variants: []string{"Valabilitate", "Validite", "Validity"},
		Strategy: SameLineOrNext,
	},
}

// Label returns the LabelSpec for field.
func Label(field string) (LabelSpec, bool) {
	for _, l := range Labels {
		if l.Field == field {
			return l, true
		}
	}
	return LabelSpec{}, false
}
