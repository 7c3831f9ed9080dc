package normalisers

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

type upper struct {
	format domain.BodyFormat
	err    error
}

func (u upper) Format() domain.BodyFormat { return u.format }

func (u upper) Normalise(body string) (string, error) {
	return strings.ToUpper(body), u.err
}

func TestRegistry_Markdown(t *testing.T) {
	r := NewRegistry(upper{format: domain.BodyText})

	out, err := r.Markdown(domain.BodyText, "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)

	out, err = r.Markdown(domain.BodyMarkdown, "*as is*")
	require.NoError(t, err)
	assert.Equal(t, "*as is*", out)

	out, err = r.Markdown(domain.BodyText, "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(upper{format: domain.BodyHTML})
	r.Register(upper{format: domain.BodyHTML, err: boom})

	n, ok := r.Get(domain.BodyHTML)
	require.True(t, ok)
	assert.Equal(t, boom, n.(upper).err)

	out, err := r.Markdown(domain.BodyHTML, "degraded")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "DEGRADED", out)
}
