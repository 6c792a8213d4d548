package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"--help"}, &out, &errOut)

	require.Equal(t, ExitOK, code)
	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "Usage:")
	for _, cmd := range commands {
		assert.Contains(t, out.String(), cmd.Name)
	}
}

func TestNoArgsShowsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run(nil, &out, &errOut)

	assert.Equal(t, ExitUsage, code)
	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "Usage:")
}

func TestUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"nope"}, &out, &errOut)

	assert.Equal(t, ExitUsage, code)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Unknown command")
	assert.Contains(t, errOut.String(), "Usage:")
}

func TestCommandHelp(t *testing.T) {
	for _, cmd := range commands {
		var out, errOut bytes.Buffer
		code := Run([]string{cmd.Name, "--help"}, &out, &errOut)

		require.Equal(t, ExitOK, code, cmd.Name)
		assert.Empty(t, errOut.String(), cmd.Name)
		for _, line := range cmd.Usage {
			assert.Contains(t, out.String(), line, cmd.Name)
		}
	}
}

func TestVersion(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"version"}, &out, &errOut)

	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out.String(), "autonfe "+Version)

	code = Run([]string{"version", "extra"}, &out, &errOut)
	assert.Equal(t, ExitUsage, code)
}
