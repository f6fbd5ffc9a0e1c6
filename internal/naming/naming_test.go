package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSuffixed(t *testing.T) {
	got := HashSuffixed("learning-bucket")
	assert.Equal(t, "learning-bucket-c518d6b29ae8835e70c5573e0073f8fe", got)

	// Same label, same name, every time.
	assert.Equal(t, got, HashSuffixed("learning-bucket"))

	// Different labels never share a suffix.
	assert.NotEqual(t, got, HashSuffixed("learning-bucket2"))
}
