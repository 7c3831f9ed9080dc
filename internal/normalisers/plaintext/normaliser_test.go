package plaintext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.Equal(t, domain.BodyText, normaliser.Format())
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single line",
			input: "Login fails on Safari",
			want:  "Login fails on Safari",
		},
		{
			name:  "line breaks become hard breaks",
			input: "Steps:\r\nopen page\r\nclick login",
			want:  "Steps:  \nopen page  \nclick login",
		},
		{
			name:  "blank runs collapse",
			input: "first\n\n\n\nsecond\n",
			want:  "first\n\nsecond",
		},
		{
			name:  "heading and list markers escaped",
			input: "# not a heading\n- not a bullet\n1. not a list",
			want:  "\\# not a heading  \n\\- not a bullet  \n1\\. not a list",
		},
		{
			name:  "trailing whitespace trimmed",
			input: "a \t\nb",
			want:  "a  \nb",
		},
	}

	normaliser := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normaliser.Normalise(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
