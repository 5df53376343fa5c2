package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "short", message: "  I had two apples  ", want: "I had two apples"},
		{name: "first line only", message: "What is in pizza?\nAnd pasta?", want: "What is in pizza?"},
		{name: "collapses spaces", message: "rice   and\tbeans", want: "rice and beans"},
		{name: "empty", message: " \n ", want: "New chat"},
		{name: "long", message: strings.Repeat("a", 50), want: strings.Repeat("a", 40) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveName(tt.message))
		})
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession("u1", "", "Breakfast ideas")
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "Breakfast ideas", s.Name)
	assert.False(t, s.CreatedAt.IsZero())

	named := NewSession("u1", " Mine ", "ignored")
	assert.Equal(t, "Mine", named.Name)
	assert.NotEqual(t, s.ID, named.ID)
}
