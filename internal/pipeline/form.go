package pipeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"aimint/internal/domain"
)

// Form is what the user typed.
type Form struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Normalize trims both fields and converts them to NFC so the same visible
// text always produces the same prompt and metadata.
func (f Form) Normalize() Form {
	return Form{
		Name:        norm.NFC.String(strings.TrimSpace(f.Name)),
		Description: norm.NFC.String(strings.TrimSpace(f.Description)),
	}
}

// Validate rejects the form unless both fields are non-empty.
func (f Form) Validate() error {
	n := f.Normalize()
	if n.Name == "" || n.Description == "" {
		return domain.ErrInvalidPrompt
	}
	return nil
}
