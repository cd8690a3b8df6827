package ddq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceSetPositionBeforeID(t *testing.T) {
	set := NewReferenceSet(false)
	set.AddRow("S", 2, "1.1", "Yes/No")
	set.AddRow("S", 5, "1.1", "[text] describe the process")

	tests := []struct {
		name string
		row  int
		id   string
		want string
	}{
		{"first row of repeated id", 2, "1.1", "Yes/No"},
		{"second row of repeated id", 5, "1.1", "[text] describe the process"},
		{"repeated id off position resolves nothing", 9, "1.1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := set.Expected("S", tt.row, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReferenceSetUniqueIDFallback(t *testing.T) {
	set := NewReferenceSet(false)
	set.AddRow("S", 2, "1.1", "Registered legal name")
	set.AddRow("S", 3, "1.2", "All directors disclosed")
	set.AddRow("S", 4, "1.2", "All directors disclosed")
	set.AddQuestion("T", "2.1", "Ja")

	got, err := set.Expected("S", 40, " 1.1 ")
	require.NoError(t, err)
	assert.Equal(t, "Registered legal name", got)

	got, err = set.Expected("S", 40, "1.2")
	require.NoError(t, err)
	assert.Equal(t, "All directors disclosed", got, "same answer twice is not ambiguous")

	got, err = set.Expected("T", 1, "2.1")
	require.NoError(t, err)
	assert.Equal(t, "Ja", got)

	got, err = set.Expected("S", 2, "9.9")
	require.NoError(t, err)
	assert.Equal(t, "Registered legal name", got, "position wins over an unknown id")
}

func TestReferenceSetStrictAndNil(t *testing.T) {
	var none *ReferenceSet
	got, err := none.Expected("S", 1, "1.1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, none.Len())

	strict := NewReferenceSet(true)
	strict.AddRow("S", 1, "", "x")
	_, err = strict.Expected("Other", 1, "")
	assert.Error(t, err)
	assert.Equal(t, 1, strict.Len())
}
