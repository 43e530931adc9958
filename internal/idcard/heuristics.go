package idcard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"idscan/internal/textnorm"
)

// Keywords that open a field on the card, in any of its languages. Matched
// on folded text at word boundaries.
var headerKeywords = regexp.MustCompile(`\b(NUME|NOM|LAST NAME|PRENUME|PRENOM|FIRST NAME|SEX|SEXE|` +
	`CETATENIE|NATIONALITE|NATIONALITY|NATIONALITATE|LOC NASTERE|LOC NAST|LOCUL NASTERII|LIEU DE NAISSANCE|PLACE OF BIRTH|` +
	`DOMICILIU|DOMICILE|ADRESSE|ADDRESS|EMISA|EMIS|DELIVREE|ISSUED BY|VALABILITATE|VALIDITE|VALIDITY|SERIA|NR|CNP)\b`)

// Machine-readable zone lines: filler runs, the document header or a long
// unbroken run of the MRZ alphabet.
var mrzLike = regexp.MustCompile(`<<|<[A-Z0-9<]{6,}|IDROU|^[A-Z0-9<]{25,}$`)

var (
	sexToken   = regexp.MustCompile(`(?i)^[MF]$`)
	dateToken  = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{2,4}`)
	shortToken = regexp.MustCompile(`^[\p{L}\p{N}_]{1,3}$`)
	cnpPattern = regexp.MustCompile(`\b\d{13}\b`)
	cnpRun     = regexp.MustCompile(`\d{13}`)
	dateRange  = regexp.MustCompile(`((\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2}))\s*[-\x{2013}]\s*((\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2}))(?:\D|$)`)
)

// Serial number patterns, applied to the folded text of the whole card.
var (
	serialCombined = regexp.MustCompile(`SERIA\s*([A-Z]{1,2})[^A-Z0-9\n]{0,6}NR\.?\s*([0-9]{4,7})`)
	serialSeries   = regexp.MustCompile(`SERIA\s*([A-Z]{1,2})`)
	serialNumber   = regexp.MustCompile(`\bNR\.?\s*([0-9]{4,7})`)
	serialMRZ      = regexp.MustCompile(`\b([A-Z]{2})([0-9]{6})\b`)
)

var (
	nationalityWords = regexp.MustCompile(`\b(ROMAN|ROMANA|ROU|ROMANIA|ROMANIE)\b`)
	countryWords     = regexp.MustCompile(`ROMA|ROMANIA|ROUMANIE|ROU`)
)

// IsLabelHeader reports whether s carries one of the field keywords.
func IsLabelHeader(s string) bool {
	return headerKeywords.MatchString(textnorm.Fold(s))
}

// IsMRZLike reports whether s looks like a machine-readable zone line.
func IsMRZLike(s string) bool {
	return mrzLike.MatchString(strings.ToUpper(s))
}

// IsSexToken reports whether s is a lone M or F.
func IsSexToken(s string) bool {
	return sexToken.MatchString(s)
}

// IsShortToken reports whether s is a single word of one to three letters or
// digits.
func IsShortToken(s string) bool {
	return shortToken.MatchString(s)
}

// FindCNP returns the first standalone run of exactly 13 digits in s.
func FindCNP(s string) (string, bool) {
	m := cnpPattern.FindString(s)
	return m, m != ""
}

// FindLabelledCNP returns the first 13 digits of a value read next to the CNP
// label. Noise digits glued to the code are cut off.
func FindLabelledCNP(s string) (string, bool) {
	m := cnpRun.FindString(s)
	return m, m != ""
}

// FindSerial extracts the series letters and card number from the folded text
// of a card. It prefers "SERIA XX NR 123456" on one line, then each keyword
// on its own, then the "XX123456" run in the machine-readable zone.
func FindSerial(folded string) (serie, number string) {
	if m := serialCombined.FindStringSubmatch(folded); m != nil {
		return m[1], m[2]
	}
	if m := serialSeries.FindStringSubmatch(folded); m != nil {
		serie = m[1]
	}
	if m := serialNumber.FindStringSubmatch(folded); m != nil {
		number = m[1]
	}
	if serie == "" || number == "" {
		if m := serialMRZ.FindStringSubmatch(folded); m != nil {
			if serie == "" {
				serie = m[1]
			}
			if number == "" {
				number = m[2]
			}
		}
	}
	return serie, number
}

// DateRange is a validity period as printed plus its ISO calendar dates.
// Start or End stay empty when the printed date is not a real calendar day.
type DateRange struct {
	Raw   string
	Start string
	End   string
}

// ParseDateRange finds the first "D.M.Y - D.M.Y" range in s. Two-digit years
// are expanded relative to now.
func ParseDateRange(s string, now time.Time) (DateRange, bool) {
	m := dateRange.FindStringSubmatch(s)
	if m == nil {
		return DateRange{}, false
	}
	r := DateRange{Raw: m[1] + "-" + m[5]}
	r.Start, _ = isoDate(m[2], m[3], m[4], now)
	r.End, _ = isoDate(m[6], m[7], m[8], now)
	return r, true
}

// ExpandYear maps a two-digit year to 19yy when it lies more than ten years
// past the current two-digit year, otherwise to 20yy.
func ExpandYear(yy int, now time.Time) int {
	if yy > now.Year()%100+10 {
		return 1900 + yy
	}
	return 2000 + yy
}

func isoDate(day, month, year string, now time.Time) (string, bool) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	if len(year) == 2 {
		y = ExpandYear(y, now)
	}
	iso := fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	if _, err := time.Parse(time.DateOnly, iso); err != nil {
		return "", false
	}
	return iso, true
}
