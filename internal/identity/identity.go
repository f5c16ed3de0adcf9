package identity

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	nonNameRe = regexp.MustCompile(`[^0-9a-zA-Zа-яА-ЯёЁ\s]+`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Candidate is a person name resolved to a stable identifier.
type Candidate struct {
	RawName        string `json:"name"`
	NormalizedName string `json:"name_norm"`
	CandidateID    string `json:"candidate_id"`
}

// Normalize lowercases a name, replaces anything that is not a letter, digit
// or whitespace with a space and collapses whitespace.
func Normalize(name string) string {
	if name == "" {
		return ""
	}
	cleaned := nonNameRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(cleaned, " "))
}

// CandidateID derives a name-based (v5) UUID from a normalized name. Names
// that normalize identically share an id.
func CandidateID(normalized string) string {
	if normalized == "" {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte("candidate:"+normalized)).String()
}

func Resolve(raw string) Candidate {
	norm := Normalize(raw)
	return Candidate{
		RawName:        strings.TrimSpace(raw),
		NormalizedName: norm,
		CandidateID:    CandidateID(norm),
	}
}
