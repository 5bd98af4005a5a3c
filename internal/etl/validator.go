package etl

import (
	"errors"
	"fmt"

	"github.com/BartekS5/sparkify/pkg/utils"
)

// ErrMissingField is returned for records lacking a required field.
var ErrMissingField = errors.New("missing required field")

// Validator checks decoded records before they are transformed.
type Validator struct {
	Required []string
}

func NewValidator(required ...string) *Validator {
	return &Validator{Required: required}
}

// ValidateDocument reports the first required field that is absent,
// null or blank.
func (v *Validator) ValidateDocument(doc map[string]interface{}) error {
	for _, f := range v.Required {
		if utils.IsBlank(doc[f]) {
			return fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}
	return nil
}

// Filter keeps the valid records and returns how many were dropped.
func (v *Validator) Filter(docs []map[string]interface{}) ([]map[string]interface{}, int) {
	kept := docs[:0:0]
	for _, d := range docs {
		if v.ValidateDocument(d) == nil {
			kept = append(kept, d)
		}
	}
	return kept, len(docs) - len(kept)
}
