package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "squealogd", cmd.Use)

	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", run.Use)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, run.Flags().Lookup("db"))
	assert.NotNil(t, run.Flags().Lookup("config"))
	assert.NotNil(t, run.Flags().Lookup("retention"))
}
