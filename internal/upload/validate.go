package upload

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/telamed/guestchat/internal/domain"
)

// FileInput is one candidate file for a batch submission.
type FileInput struct {
	Name    string
	Size    int64
	Content io.Reader
}

// ValidationError is a per-file rejection raised before submission. Invalid
// files never block the valid ones in the same batch.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

// Validate splits files into submittable and rejected against a category's
// size cap and accepted extensions.
func Validate(files []FileInput, category domain.FileCategory) ([]FileInput, []ValidationError) {
	rule, ok := domain.CategoryRuleFor(category)
	if !ok {
		rejected := make([]ValidationError, 0, len(files))
		for _, file := range files {
			rejected = append(rejected, ValidationError{
				Filename: file.Name,
				Reason:   fmt.Sprintf("unknown category %q", category),
			})
		}
		return nil, rejected
	}

	var valid []FileInput
	var rejected []ValidationError
	for _, file := range files {
		if file.Size > rule.MaxSize {
			rejected = append(rejected, ValidationError{
				Filename: file.Name,
				Reason:   fmt.Sprintf("exceeds %d MB limit for %s", rule.MaxSize>>20, category),
			})
			continue
		}
		ext := strings.ToLower(filepath.Ext(file.Name))
		if !contains(rule.Extensions, ext) {
			rejected = append(rejected, ValidationError{
				Filename: file.Name,
				Reason:   fmt.Sprintf("file type %s not accepted for %s", ext, category),
			})
			continue
		}
		valid = append(valid, file)
	}
	return valid, rejected
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
