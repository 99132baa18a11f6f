package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "senior auditor london", NormalizeText("  Senior   Auditor\n\tLondon "))
	assert.Equal(t, "", NormalizeText("   \t\n"))
	assert.Equal(t, "audit", NormalizeText("Audit"))
}

func TestHashTextIsDeterministic(t *testing.T) {
	a := HashText("Senior Auditor  London")
	b := HashText("senior auditor london")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, HashText("junior auditor london"))
}
