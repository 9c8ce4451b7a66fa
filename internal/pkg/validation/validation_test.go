package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("l1@example.com"))
	assert.False(t, IsValidEmail("l1@example"))
	assert.False(t, IsValidEmail("l 1@example.com"))
	assert.False(t, IsValidEmail(strings.Repeat("a", 250)+"@example.com"))
}

func TestIsValidPassword(t *testing.T) {
	assert.True(t, IsValidPassword("ChangeMe!2026"))
	assert.False(t, IsValidPassword("password123"))
	assert.False(t, IsValidPassword("Sh0rt!"))
	assert.False(t, IsValidPassword("!!!!2222"))
}

func TestIsValidFullname(t *testing.T) {
	assert.True(t, IsValidFullname("Dana O'Neil-Smith"))
	assert.False(t, IsValidFullname(""))
	assert.False(t, IsValidFullname("R2D2"))
}
