package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstallScriptEmbedsBindingAndSelectors(t *testing.T) {
	t.Parallel()

	script, err := installScript("emit\"x", []string{".card", `[data-scroll="a"]`})
	require.NoError(t, err)
	require.Contains(t, script, `window["emit\"x"]`)
	require.Contains(t, script, `[".card","[data-scroll=\"a\"]"]`)
	require.True(t, strings.HasPrefix(script, "(() => {"))
}

func TestScrollScript(t *testing.T) {
	t.Parallel()

	require.Contains(t, scrollScript(250), "window.scrollTo(0, 250)")
	require.Contains(t, scrollScript(12.5), "window.scrollTo(0, 12.5)")
}
