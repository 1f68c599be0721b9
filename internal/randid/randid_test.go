package randid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewindhq/rewind/internal/validation"
)

func TestForkIDIsPathSafeAndUnique(t *testing.T) {
	a := ForkID()
	b := ForkID()
	assert.NotEqual(t, a, b)
	assert.NoError(t, validation.ValidateForkID(a))
}

func TestDisambiguatorIsShort(t *testing.T) {
	d := Disambiguator()
	assert.Len(t, d, 4)
	assert.NoError(t, validation.ValidateForkID(d))
}
