package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/careledger/claimsort/internal/llm"
	"github.com/careledger/claimsort/internal/model"
)

// Extractor turns raw document text into a structured DocumentRecord
// via a language-model call. It owns prompt construction and defensive
// response parsing; the model call itself is a black box.
type Extractor struct {
	provider       llm.Provider
	minTextLength  int
	maxPromptChars int
	now            func() time.Time
}

// Option configures an Extractor
type Option func(*Extractor)

// WithClock overrides the time source (used by the date-parse fallback)
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithMinTextLength sets the minimum usable text length
func WithMinTextLength(n int) Option {
	return func(e *Extractor) { e.minTextLength = n }
}

// WithMaxPromptChars caps the raw-text prefix submitted to the model
func WithMaxPromptChars(n int) Option {
	return func(e *Extractor) { e.maxPromptChars = n }
}

// NewExtractor creates a new extractor backed by the given provider
func NewExtractor(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		provider:       provider,
		minTextLength:  40,
		maxPromptChars: 2500,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// extractionPayload mirrors the JSON object the prompt asks the model for
type extractionPayload struct {
	Category    string `json:"category"`
	IdentityKey string `json:"identity_key"`
	EventDate   string `json:"event_date"`
	PatientName string `json:"patient_name"`
	ClinicName  string `json:"clinic_name"`
	BillNumber  string `json:"bill_number"`
	Amount      string `json:"amount"`
	Context     string `json:"context"`
}

// Extract runs one model call over the document text and returns the
// structured record. knownLabels, when supplied, are included verbatim in
// the prompt to bias the model toward reusing an existing cluster name
// instead of inventing near-duplicates.
//
// Failure classes: ErrTextAbsent, *ModelCallError, ErrUnparseable.
// Missing dates and identities are recovered locally, never errors.
func (e *Extractor) Extract(ctx context.Context, sourceID, sourceName, rawText string, knownLabels []string) (*model.DocumentRecord, error) {
	text := strings.TrimSpace(rawText)
	if len(text) < e.minTextLength {
		return nil, fmt.Errorf("%w: %d chars", ErrTextAbsent, len(text))
	}

	// Bound the prefix submitted to the model to cap cost and latency
	if len(text) > e.maxPromptChars {
		text = text[:e.maxPromptChars]
	}

	prompt := BuildPrompt(text, knownLabels)

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{Prompt: prompt})
	if err != nil {
		return nil, &ModelCallError{Provider: e.provider.Name(), Err: err}
	}

	payload, err := parseResponse(resp.Text)
	if err != nil {
		return nil, err
	}

	identity := strings.TrimSpace(payload.IdentityKey)
	if identity == "" {
		identity = model.UnknownIdentity
	}

	return &model.DocumentRecord{
		SourceID:    sourceID,
		SourceName:  sourceName,
		RawText:     text,
		Category:    model.ParseCategory(strings.TrimSpace(payload.Category)),
		IdentityKey: identity,
		EventDate:   e.parseDate(payload.EventDate),
		Fields: model.Fields{
			PatientName: strings.TrimSpace(payload.PatientName),
			ClinicName:  strings.TrimSpace(payload.ClinicName),
			BillNumber:  strings.TrimSpace(payload.BillNumber),
			Amount:      strings.TrimSpace(payload.Amount),
			Context:     strings.TrimSpace(payload.Context),
		},
	}, nil
}

// BuildPrompt constructs the deterministic extraction prompt
func BuildPrompt(text string, knownLabels []string) string {
	var b strings.Builder

	b.WriteString("Extract the following fields from the scanned medical document text below.\n")
	b.WriteString("Respond with a single JSON object and nothing else. Fields:\n\n")
	b.WriteString("- \"category\": exactly one of [")
	for i, c := range model.Categories() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(c))
	}
	b.WriteString("]\n")
	b.WriteString("- \"identity_key\": the patient's unique health identifier if printed on the document; otherwise a short grouping key of the form \"<patient name>-<disease or visit context>\"; empty string if neither can be determined\n")
	b.WriteString("- \"event_date\": the date the document pertains to, formatted YYYY-MM-DD; empty string if not present\n")
	b.WriteString("- \"patient_name\": the patient's name, or empty string\n")
	b.WriteString("- \"clinic_name\": the clinic/hospital/pharmacy name, or empty string\n")
	b.WriteString("- \"bill_number\": the bill or receipt number, or empty string\n")
	b.WriteString("- \"amount\": the total amount as printed, or empty string\n")
	b.WriteString("- \"context\": one or two words describing the disease or episode of care, or empty string\n")

	if len(knownLabels) > 0 {
		b.WriteString("\nKnown claim groups already on file:\n")
		for _, label := range knownLabels {
			b.WriteString("- ")
			b.WriteString(label)
			b.WriteString("\n")
		}
		b.WriteString("If this document clearly belongs to one of these patients and episodes, keep identity_key and context consistent with that group's naming.\n")
	}

	b.WriteString("\nDocument text:\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n")

	return b.String()
}

// parseResponse strips code-fence decoration and parses the JSON payload
func parseResponse(text string) (*extractionPayload, error) {
	cleaned := StripCodeFences(text)

	var payload extractionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	// A structurally valid but empty object is as useless as garbage
	if payload.Category == "" && payload.IdentityKey == "" && payload.PatientName == "" {
		return nil, fmt.Errorf("%w: no usable fields in response", ErrUnparseable)
	}

	return &payload, nil
}

// StripCodeFences removes Markdown code-fence decoration the model may
// wrap around its JSON output (```json ... ``` or plain ``` ... ```)
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop the optional language tag on the opening fence
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || isLanguageTag(first) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// dateLayouts are tried in order when parsing the model's event date
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// parseDate parses the event date, falling back to the current date when
// the field is absent or malformed. This is a deliberate recovery policy:
// a bad date never fails the document.
func (e *Extractor) parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
