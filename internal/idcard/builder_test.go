package idcard

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idscan/internal/textnorm"
	"idscan/pkg/models"
)

const sampleCard = `ROUMANIE
ROMANIA
ROMANIA
CARTE
CARTE DE IDENTITATE
IDENTITY
D'IDENTITE
SERIA RK NR 028132
CARD
CNP 1890506430036
S4H4Z
Nume/Nom/Last name
CACIULATU
Prenume/Prenom/First name
LIVIU-MARIUS
Cetätenie/Nationalite/Nationality
Sex/Sexe/Sex
Română / ROU
M
Loc nastere/Lieu de naissance/Place of birth
Mun.Bucuresti Sec.3
Domiciliu/Adresse/Address
Mun.București Sec.3
Str.Ilioara nr.19A ap.14
838 eup B
Emisa de/Delivree par/Issued by
Valabilitate/Validite/Validity
S.P.C.E.P. Sector 3
17.01.17-06.05.2027
IDROUCACIULATU<<LIVIU<MARIUS<<<<<<<<
RK028132<5R0U8905064M270506614300369`

func testBuilder() *Builder {
	return NewBuilder(WithClock(func() time.Time { return clock2026 }))
}

func build(raw string) *models.IdentityRecord {
	return testBuilder().Build(textnorm.Lines(raw))
}

func TestBuild_SampleCard(t *testing.T) {
	rec := build(sampleCard)

	want := map[string]string{
		models.FieldCountry:               "ROMANIA",
		models.FieldSerie:                 "RK",
		models.FieldNumber:                "028132",
		models.FieldLastName:              "CACIULATU",
		models.FieldFirstName:             "LIVIU-MARIUS",
		models.FieldNationality:           "Română",
		models.FieldNationalityNormalized: "romana",
		models.FieldSex:                   "M",
		models.FieldCNP:                   "1890506430036",
		models.FieldBirthPlace:            "Mun.Bucuresti Sec.3",
		models.FieldAddress:               "Mun.București Sec.3 Str.Ilioara nr.19A ap.14 838 eup B",
		models.FieldIssuedBy:              "S.P.C.E.P. Sector 3",
		models.FieldValidity:              "17.01.17-06.05.2027",
		models.FieldValidityStart:         "2017-01-17",
		models.FieldValidityEnd:           "2027-05-06",
	}
	assert.Equal(t, want, rec.Fields())
	assert.Empty(t, rec.Missing())
	assert.Len(t, rec.RawLines, 31)
}

func TestBuild_IsIdempotentOnRawLines(t *testing.T) {
	first := build(sampleCard)
	second := build(strings.Join(first.RawLines, "\n"))
	assert.Equal(t, first, second)
}

func TestBuild_Fragments(t *testing.T) {
	rec := build("Nume/Nom/Last name\nCACIULATU\nPrenume/Prenom/First name\nLIVIU-MARIUS")
	assert.Equal(t, "CACIULATU", rec.LastName)
	assert.Equal(t, "LIVIU-MARIUS", rec.FirstName)

	rec = build("ROMANIA\nCARTE\nCNP 1890506430036")
	assert.Equal(t, "1890506430036", rec.CNP)
	assert.Len(t, rec.CNP, 13)

	rec = build("Valabilitate/Validite/Validity\n17.01.17-06.05.2027")
	assert.Equal(t, "17.01.17-06.05.2027", rec.Validity)
	assert.Equal(t, "2017-01-17", rec.ValidityStart)
	assert.Equal(t, "2027-05-06", rec.ValidityEnd)

	rec = build("CARTE\nSERIA RK NR 028132")
	assert.Equal(t, "RK", rec.Serie)
	assert.Equal(t, "028132", rec.Number)
}

func TestBuild_LabelledCNPWithTrailingNoise(t *testing.T) {
	rec := build("CNP 18905064300361")
	assert.Equal(t, "1890506430036", rec.CNP)
}

func TestBuild_SexBehindStackedCaptions(t *testing.T) {
	rec := build("Sex/Sexe/Sex\nCetatenie/Nationalite\nLoc nastere/Lieu\nDomiciliu\nM")
	assert.Equal(t, "M", rec.Sex)
}

func TestBuild_CNPFallsBackToFullText(t *testing.T) {
	rec := build("CNP\nNume POPESCU\n2900101123456 X")
	assert.Equal(t, "2900101123456", rec.CNP)
}

func TestBuild_ValidityWithoutRangeIsKeptRaw(t *testing.T) {
	rec := build("Valabilitate\nPERMANENT")
	assert.Equal(t, "PERMANENT", rec.Validity)
	assert.Empty(t, rec.ValidityStart)
	assert.Empty(t, rec.ValidityEnd)
}

func TestBuild_NationalityFallback(t *testing.T) {
	rec := build("CARTE\nIDENTITY\nROU / ROMANA")
	assert.Equal(t, "ROU", rec.Nationality)
	assert.Equal(t, "rou", rec.NationalityNormalized)
}

func TestBuild_CountryFallbackOnShortText(t *testing.T) {
	assert.Equal(t, "ROUMANIE", build("ROUMANIE\nCARTE").Country)
	assert.Equal(t, "", build("CARTE\nIDENTITY").Country)
}

func TestBuild_EmptyInput(t *testing.T) {
	rec := build("")
	require.NotNil(t, rec)
	assert.Empty(t, rec.Fields())
	assert.Nil(t, rec.RawLines)
	assert.Equal(t, models.CoreFields, rec.Missing())
}

func ExampleParse() {
	rec := Parse("CARTE DE IDENTITATE\nSERIA RK NR 028132\nCNP 1890506430036\nNume/Nom/Last name\nCACIULATU")
	fmt.Println(rec.Serie, rec.Number, rec.CNP, rec.LastName)
	// Output: RK 028132 1890506430036 CACIULATU
}
