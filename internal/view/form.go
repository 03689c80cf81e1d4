package view

import (
	"fmt"
	"strings"

	"github.com/elonfeng/solus/internal/fileinput"
)

// CoverMode selects where the cover image comes from.
type CoverMode string

const (
	CoverFromURL  CoverMode = "url"
	CoverFromFile CoverMode = "file"
)

// ContentMode selects where the entry content comes from.
type ContentMode string

const (
	ContentPasted   ContentMode = "paste"
	ContentFromFile ContentMode = "file"
)

// Form is the add-entry form as the user filled it in. Only the input
// matching each mode is read.
type Form struct {
	Name string

	CoverMode CoverMode
	CoverURL  string
	CoverFile fileinput.Upload

	ContentMode ContentMode
	ContentText string
	ContentFile fileinput.Upload
}

// EmptyForm is the state of a freshly reset form.
func EmptyForm() Form {
	return Form{CoverMode: CoverFromURL, ContentMode: ContentPasted}
}

// ValidationError is a user input that failed a precondition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func describeExtensions(exts []string) string {
	switch len(exts) {
	case 0:
		return ""
	case 1:
		return "a " + exts[0] + " file"
	}
	return "a " + strings.Join(exts[:len(exts)-1], ", ") + " or " + exts[len(exts)-1] + " file"
}
