package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSeries(t *testing.T) {
	values, err := ReadSeries(strings.NewReader("1 2.5\n# comment\n3,4\t5 # trailing\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3, 4, 5}, values)
}

func TestReadSeries_BadValue(t *testing.T) {
	_, err := ReadSeries(strings.NewReader("1\n2 x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
