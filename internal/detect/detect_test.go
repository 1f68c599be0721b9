package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareNoHeadSignatureIsChanged(t *testing.T) {
	assert.Equal(t, Changed, Compare("abc", "", false))
}

func TestCompareEqualSignaturesIsUnchanged(t *testing.T) {
	assert.Equal(t, Unchanged, Compare("abc", "abc", true))
}

func TestCompareDifferentSignaturesIsChanged(t *testing.T) {
	assert.Equal(t, Changed, Compare("abc", "def", true))
}
