package idcard

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"idscan/internal/logger"
	"idscan/internal/textnorm"
	"idscan/pkg/models"
)

// Builder assembles an IdentityRecord from normalized OCR lines.
type Builder struct {
	now func() time.Time
	log zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the clock used to expand two-digit years.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder returns a Builder using the wall clock.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		now: time.Now,
		log: logger.WithComponent("idcard"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Parse builds a record straight from raw OCR text.
func Parse(raw string) *models.IdentityRecord {
	return NewBuilder().Build(textnorm.Lines(raw))
}

// Build extracts every field it can find. Fields the card does not yield are
// left empty.
func (b *Builder) Build(lines []textnorm.Line) *models.IdentityRecord {
	texts := textnorm.Texts(lines)
	joined := strings.Join(texts, " ")

	rec := &models.IdentityRecord{RawLines: texts}
	if len(texts) == 0 {
		rec.RawLines = nil
	}

	rec.Country = country(texts)
	rec.Serie, rec.Number = FindSerial(textnorm.Fold(joined))

	fields := ExtractAll(lines)
	rec.LastName = fields[models.FieldLastName]
	rec.FirstName = fields[models.FieldFirstName]
	rec.Sex = fields[models.FieldSex]
	rec.BirthPlace = fields[models.FieldBirthPlace]
	rec.Address = fields[models.FieldAddress]
	rec.IssuedBy = fields[models.FieldIssuedBy]

	rec.CNP = cnp(fields[models.FieldCNP], joined)
	rec.Nationality = nationality(fields[models.FieldNationality], texts)
	if rec.Nationality != "" {
		rec.NationalityNormalized = textnorm.FoldLower(rec.Nationality)
	}

	if v := fields[models.FieldValidity]; v != "" {
		rec.Validity = v
		if r, ok := ParseDateRange(v, b.now()); ok {
			rec.Validity = r.Raw
			rec.ValidityStart = r.Start
			rec.ValidityEnd = r.End
		}
	}

	b.log.Debug().
		Int("lines", len(lines)).
		Int("fields", len(rec.Fields())).
		Strs("missing", rec.Missing()).
		Msg("Identity record built")

	return rec
}

// country reads the third line, where the issuing state is printed. Short
// texts fall back to the first line naming the country.
func country(texts []string) string {
	if len(texts) >= 3 {
		return texts[2]
	}
	for _, t := range texts {
		if countryWords.MatchString(textnorm.Fold(t)) {
			return t
		}
	}
	return ""
}

func cnp(labelled, joined string) string {
	if labelled != "" {
		if v, ok := FindLabelledCNP(labelled); ok {
			return v
		}
	}
	v, _ := FindCNP(joined)
	return v
}

// nationality keeps the first slash-separated segment, so "Română / ROU"
// yields "Română".
func nationality(labelled string, texts []string) string {
	if labelled == "" {
		for _, t := range texts {
			if nationalityWords.MatchString(textnorm.Fold(t)) {
				labelled = t
				break
			}
		}
	}
	if labelled == "" {
		return ""
	}
	first, _, _ := strings.Cut(labelled, "/")
	return strings.TrimSpace(first)
}
