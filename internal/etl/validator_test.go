package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Filter(t *testing.T) {
	v := NewValidator("song_id")
	docs := []map[string]interface{}{
		{"song_id": "SOAAAAA"},
		{"song_id": ""},
		{"title": "no id"},
		{"song_id": nil},
	}

	kept, dropped := v.Filter(docs)
	assert.Len(t, kept, 1)
	assert.Equal(t, 3, dropped)

	assert.ErrorIs(t, v.ValidateDocument(docs[2]), ErrMissingField)
}
