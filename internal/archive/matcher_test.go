package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileMatcher(t *testing.T) {
	t.Run("basic patterns", func(t *testing.T) {
		m, err := CompileMatcher([]string{"*.log", "build/", "secret.txt"})
		require.NoError(t, err)

		assert.True(t, m.Matches("debug.log"))
		assert.True(t, m.Matches("sub/debug.log"))
		assert.True(t, m.Matches("secret.txt"))
		assert.False(t, m.Matches("notes.md"))
	})

	t.Run("double star", func(t *testing.T) {
		m, err := CompileMatcher([]string{"**/node_modules"})
		require.NoError(t, err)

		assert.True(t, m.Matches("node_modules"))
		assert.True(t, m.Matches("web/node_modules"))
		assert.False(t, m.Matches("web/src"))
	})

	t.Run("negation", func(t *testing.T) {
		m, err := CompileMatcher([]string{"*.log", "!keep.log"})
		require.NoError(t, err)

		assert.True(t, m.Matches("debug.log"))
		assert.False(t, m.Matches("keep.log"))
	})

	t.Run("nil matcher matches nothing", func(t *testing.T) {
		var m *Matcher
		assert.False(t, m.Matches("anything"))
	})
}
