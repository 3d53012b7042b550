package match

import (
	"strings"
	"time"

	"github.com/careledger/claimsort/internal/model"
)

// Separator joins label components. Registry cold-start falls back to
// splitting persisted grouping names on it, so it never appears inside a
// sanitized component.
const Separator = "_"

// Label derives the grouping name for a record deterministically:
// same input fields always produce the same label. Components are
// sanitized to the safe identifier alphabet [A-Za-z0-9-] and joined
// with Separator.
//
// Records without an identity signal get the source name appended so
// each occurrence yields a distinct claim and they are never merged.
func Label(rec *model.DocumentRecord) string {
	name := Sanitize(rec.Fields.PatientName)
	if name == "" {
		name = "Unnamed"
	}

	identity := Sanitize(rec.IdentityKey)
	if identity == "" {
		identity = model.UnknownIdentity
	}

	parts := []string{name, identity, rec.EventDate.Format("2006-01-02")}
	if !rec.HasIdentity() {
		doc := Sanitize(rec.SourceName)
		if doc == "" {
			doc = "doc"
		}
		parts = append(parts, doc)
	}

	return strings.Join(parts, Separator)
}

// ParseLegacyLabel is the best-effort fallback for groupings persisted
// before the sidecar encoding existed: it split-parses a 3-component
// label back into a claim. Names that do not parse into exactly
// name/identity/date are discarded by the caller.
func ParseLegacyLabel(name string) (*model.Claim, bool) {
	parts := strings.Split(name, Separator)
	if len(parts) != 3 {
		return nil, false
	}

	anchor, err := time.Parse("2006-01-02", parts[2])
	if err != nil {
		return nil, false
	}

	return &model.Claim{
		ClusterKey: parts[1],
		Label:      name,
		AnchorDate: anchor,
	}, true
}

// Sanitize strips a component down to the safe identifier alphabet:
// letters, digits, and hyphens. Runs of anything else collapse to a
// single hyphen; leading and trailing hyphens are trimmed.
func Sanitize(s string) string {
	var b strings.Builder
	lastHyphen := false

	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}
