package utils

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochMillisToTime(t *testing.T) {
	got, err := EpochMillisToTime(json.Number("1541105830796"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 11, 1, 20, 57, 10, 796_000_000, time.UTC), got)
}

func TestConvertToInt64(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int64
	}{
		{"json integer", json.Number("39"), 39},
		{"json float notation", json.Number("1.540919166796E12"), 1540919166796},
		{"string", " 7 ", 7},
		{"float64", float64(12), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertToInt64(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ConvertToInt64(struct{}{})
	assert.Error(t, err)
}

func TestNullableInt64_BlankUserID(t *testing.T) {
	got, err := NullableInt64("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = NullableInt64("26")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(26), *got)
}

func TestEpochMillisToTime_RejectsText(t *testing.T) {
	_, err := EpochMillisToTime("2018-01-07T10:00:00Z")
	assert.Error(t, err)
}

func TestNullableFloat(t *testing.T) {
	got, err := NullableFloat(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = NullableFloat(json.Number("218.93179"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 218.93179, *got, 1e-9)
}
