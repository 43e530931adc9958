// Package completion asks a chat model to fill the fields the label-anchored
// extractor left empty. It never overwrites a field that was already read.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"idscan/internal/idcard"
	"idscan/internal/logger"
	"idscan/internal/textnorm"
	"idscan/pkg/models"
)

var (
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required for completion")
	ErrNoChoices     = errors.New("no response choices from model")
)

// ChatClient is the part of the OpenAI client the service uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures the completion service.
type Config struct {
	Model       string
	Temperature float32
	MaxRetries  int
	MaxTokens   int
}

// DefaultConfig returns a low-temperature configuration.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		Temperature: 0.1,
		MaxRetries:  3,
		MaxTokens:   800,
	}
}

// Service completes identity records from their raw OCR lines.
type Service struct {
	client ChatClient
	config Config
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a service backed by the OpenAI API.
func NewService(apiKey string, cfg Config) (*Service, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewServiceWithClient(openai.NewClient(apiKey), cfg), nil
}

// NewServiceWithClient creates a service with an explicit client.
func NewServiceWithClient(client ChatClient, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	return &Service{
		client: client,
		config: cfg,
		log:    logger.WithComponent("completion"),
		now:    time.Now,
	}
}

// Complete fills the missing core fields of rec in place and returns the
// names of the fields it filled. A record with nothing missing is returned
// without calling the model.
func (s *Service) Complete(ctx context.Context, rec *models.IdentityRecord) ([]string, error) {
	const op = "Complete"

	missing := rec.Missing()
	if len(missing) == 0 || len(rec.RawLines) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(rec, missing)

	s.log.Debug().
		Int("prompt_length", len(prompt)).
		Strs("missing_fields", missing).
		Str("model", s.config.Model).
		Msg("Sending completion request")

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Temperature: s.config.Temperature,
			MaxTokens:   s.config.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", s.config.MaxRetries).
				Msg("Completion request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = ErrNoChoices
			continue
		}

		content := resp.Choices[0].Message.Content
		var answer map[string]any
		if err := json.Unmarshal([]byte(content), &answer); err != nil {
			lastErr = fmt.Errorf("failed to parse model JSON response: %w", err)
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Failed to parse completion response, retrying")
			continue
		}

		filled := Merge(rec, answer, missing, s.now())
		s.log.Info().
			Strs("filled", filled).
			Int("attempt", attempt).
			Msg("Record completed")
		return filled, nil
	}

	return nil, fmt.Errorf("%s: all %d attempts failed, last error: %w", op, s.config.MaxRetries, lastErr)
}

const systemPrompt = `You read OCR text from Romanian identity cards (carte de identitate).
Return a single JSON object whose keys are the requested field names and whose
values are the exact text printed on the card. Omit a key when the text does
not contain the value. Dates must be YYYY-MM-DD. Do not invent values.`

var fieldHints = map[string]string{
	models.FieldCountry:     "issuing country as printed, e.g. ROMANIA",
	models.FieldSerie:       "two-letter series code",
	models.FieldNumber:      "six-digit document number",
	models.FieldLastName:    "surname",
	models.FieldFirstName:   "given names",
	models.FieldSex:         "M or F",
	models.FieldNationality: "citizenship as printed",
	models.FieldCNP:         "13-digit personal numeric code",
	models.FieldBirthPlace:  "place of birth",
	models.FieldAddress:     "full address",
	models.FieldIssuedBy:    "issuing authority",
	models.FieldValidity:    "validity range as printed, e.g. 17.01.17-06.05.2027",
}

// Asked for alongside a missing validity, used when the printed range
// cannot be parsed.
var validityHints = map[string]string{
	models.FieldValidityStart: "first day of validity, YYYY-MM-DD",
	models.FieldValidityEnd:   "last day of validity, YYYY-MM-DD",
}

func buildPrompt(rec *models.IdentityRecord, missing []string) string {
	var b strings.Builder
	b.WriteString("Fields already read:\n")
	known, _ := json.Marshal(rec.Fields())
	b.Write(known)
	b.WriteString("\n\nFields to find:\n")
	for _, f := range missing {
		fmt.Fprintf(&b, "- %s: %s\n", f, fieldHints[f])
		if f == models.FieldValidity {
			for _, k := range []string{models.FieldValidityStart, models.FieldValidityEnd} {
				fmt.Fprintf(&b, "- %s: %s\n", k, validityHints[k])
			}
		}
	}
	b.WriteString("\nOCR text:\n")
	b.WriteString(strings.Join(rec.RawLines, "\n"))
	return b.String()
}

var (
	cnpDigits    = regexp.MustCompile(`^\d{13}$`)
	sexValue     = regexp.MustCompile(`^[MF]$`)
	serieLetters = regexp.MustCompile(`^[A-Z]{2}$`)
	numberDigits = regexp.MustCompile(`^\d{6}$`)
)

// Merge copies the answers for the missing fields into rec, dropping values
// that fail validation, and returns the fields it set. Fields already present
// are never touched. A filled validity is parsed like a scanned one, with
// two-digit years expanded relative to now.
func Merge(rec *models.IdentityRecord, answer map[string]any, missing []string, now time.Time) []string {
	var filled []string
	for _, field := range missing {
		if rec.Get(field) != "" {
			continue
		}
		raw := answer[field]
		// Series and number keep leading zeros only as strings.
		if _, isNum := raw.(float64); isNum && (field == models.FieldSerie || field == models.FieldNumber) {
			continue
		}
		value := strings.TrimSpace(stringValue(raw))
		if field == models.FieldSex || field == models.FieldSerie {
			value = strings.ToUpper(value)
		}
		if value == "" || !valid(field, value) {
			continue
		}
		if rec.Set(field, value) {
			filled = append(filled, field)
		}
	}

	for _, f := range filled {
		switch f {
		case models.FieldNationality:
			rec.NationalityNormalized = textnorm.FoldLower(rec.Nationality)
		case models.FieldValidity:
			if r, ok := idcard.ParseDateRange(rec.Validity, now); ok {
				rec.Validity = r.Raw
				rec.ValidityStart, rec.ValidityEnd = r.Start, r.End
				continue
			}
			start := strings.TrimSpace(stringValue(answer[models.FieldValidityStart]))
			end := strings.TrimSpace(stringValue(answer[models.FieldValidityEnd]))
			if isISODate(start) && isISODate(end) && rec.ValidityStart == "" && rec.ValidityEnd == "" {
				rec.ValidityStart, rec.ValidityEnd = start, end
			}
		}
	}
	return filled
}

func valid(field, value string) bool {
	switch field {
	case models.FieldCNP:
		return cnpDigits.MatchString(value)
	case models.FieldSex:
		return sexValue.MatchString(value)
	case models.FieldSerie:
		return serieLetters.MatchString(value)
	case models.FieldNumber:
		return numberDigits.MatchString(value)
	}
	return true
}

func isISODate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}
