package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idscan/pkg/models"
)

type fakeChat struct {
	replies []string
	errs    []error
	reqs    []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := len(f.reqs)
	f.reqs = append(f.reqs, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.replies[i]}}},
	}, nil
}

func partialRecord() *models.IdentityRecord {
	return &models.IdentityRecord{
		Country:  "ROMANIA",
		LastName: "CACIULATU",
		RawLines: []string{"ROMANIA", "CACIULATU", "Cetățenie Română", "CNP 1890506430036"},
	}
}

var clock2026 = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func TestMerge(t *testing.T) {
	rec := partialRecord()
	answer := map[string]any{
		models.FieldLastName:      "POPESCU",
		models.FieldFirstName:     "LIVIU-MARIUS",
		models.FieldCNP:           "18905064300",
		models.FieldSex:           "m",
		models.FieldNationality:   "Română",
		models.FieldValidity:      "17.01.17 - 06.05.2027",
		models.FieldAddress:       "   ",
		models.FieldSerie:         "rk",
		models.FieldNumber:        "028132",
	}

	filled := Merge(rec, answer, rec.Missing(), clock2026)

	assert.Equal(t, "CACIULATU", rec.LastName, "present fields are kept")
	assert.Equal(t, "LIVIU-MARIUS", rec.FirstName)
	assert.Empty(t, rec.CNP, "CNP must be 13 digits")
	assert.Equal(t, "M", rec.Sex)
	assert.Equal(t, "Română", rec.Nationality)
	assert.Equal(t, "romana", rec.NationalityNormalized)
	assert.Equal(t, "17.01.17-06.05.2027", rec.Validity)
	assert.Equal(t, "2017-01-17", rec.ValidityStart)
	assert.Equal(t, "2027-05-06", rec.ValidityEnd)
	assert.Empty(t, rec.Address)
	assert.Equal(t, "RK", rec.Serie)
	assert.Equal(t, "028132", rec.Number)
	assert.ElementsMatch(t, []string{
		models.FieldSerie, models.FieldNumber, models.FieldFirstName, models.FieldSex,
		models.FieldNationality, models.FieldValidity,
	}, filled)
}

func TestMerge_RejectsNumericSerial(t *testing.T) {
	rec := &models.IdentityRecord{}
	filled := Merge(rec, map[string]any{
		models.FieldNumber: float64(28132),
		models.FieldSerie:  "R1",
		models.FieldCNP:    float64(1890506430036),
	}, []string{models.FieldSerie, models.FieldNumber, models.FieldCNP}, clock2026)

	assert.Equal(t, []string{models.FieldCNP}, filled)
	assert.Empty(t, rec.Number)
	assert.Empty(t, rec.Serie)
	assert.Equal(t, "1890506430036", rec.CNP)
}

func TestMerge_UnparsedValidityUsesISODates(t *testing.T) {
	rec := &models.IdentityRecord{}
	Merge(rec, map[string]any{
		models.FieldValidity:      "2017 - 2027",
		models.FieldValidityStart: "2017-01-17",
		models.FieldValidityEnd:   "2027-05-06",
	}, []string{models.FieldValidity}, clock2026)

	assert.Equal(t, "2017 - 2027", rec.Validity)
	assert.Equal(t, "2017-01-17", rec.ValidityStart)
	assert.Equal(t, "2027-05-06", rec.ValidityEnd)
}

func TestMerge_RejectsBadDates(t *testing.T) {
	rec := &models.IdentityRecord{}
	Merge(rec, map[string]any{
		models.FieldValidity:      "2017 - 2027",
		models.FieldValidityStart: "17.01.2017",
		models.FieldValidityEnd:   "2027-05-06",
	}, []string{models.FieldValidity}, clock2026)

	assert.Equal(t, "2017 - 2027", rec.Validity)
	assert.Empty(t, rec.ValidityStart)
	assert.Empty(t, rec.ValidityEnd)
}

func TestComplete(t *testing.T) {
	chat := &fakeChat{
		errs:    []error{errors.New("rate limited"), nil},
		replies: []string{"", `{"firstName": "LIVIU-MARIUS", "cnp": "1890506430036"}`},
	}
	svc := NewServiceWithClient(chat, Config{})
	rec := partialRecord()

	filled, err := svc.Complete(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{models.FieldFirstName, models.FieldCNP}, filled)
	assert.Equal(t, "1890506430036", rec.CNP)
	require.Len(t, chat.reqs, 2)

	req := chat.reqs[1]
	assert.Equal(t, openai.GPT4oMini, req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	assert.Contains(t, req.Messages[1].Content, "Cetățenie Română")
	assert.Contains(t, req.Messages[1].Content, "- cnp: 13-digit personal numeric code")
	assert.NotContains(t, req.Messages[1].Content, "- lastName")
	assert.Contains(t, req.Messages[1].Content, "- validityStart: first day of validity")
}

func TestComplete_ValidityGetsDates(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"validity": "17.01.17-06.05.2027", "number": 28132}`}}
	svc := NewServiceWithClient(chat, Config{})
	svc.now = func() time.Time { return clock2026 }
	rec := partialRecord()

	filled, err := svc.Complete(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{models.FieldValidity}, filled)
	assert.Equal(t, "2017-01-17", rec.ValidityStart)
	assert.Equal(t, "2027-05-06", rec.ValidityEnd)
	assert.Empty(t, rec.Number)
}

func TestComplete_NothingMissing(t *testing.T) {
	chat := &fakeChat{}
	rec := &models.IdentityRecord{RawLines: []string{"x"}}
	for _, f := range models.CoreFields {
		rec.Set(f, "x")
	}

	filled, err := NewServiceWithClient(chat, Config{}).Complete(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, filled)
	assert.Empty(t, chat.reqs)
}

func TestComplete_AllAttemptsFail(t *testing.T) {
	chat := &fakeChat{replies: []string{"not json", "{", "[]"}}
	_, err := NewServiceWithClient(chat, Config{MaxRetries: 3}).Complete(context.Background(), partialRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Len(t, chat.reqs, 3)
}

func TestNewService_RequiresKey(t *testing.T) {
	_, err := NewService("", DefaultConfig())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
