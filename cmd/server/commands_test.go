package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})

	err := root.ExecuteContext(context.Background())
	require.EqualError(t, err, "migrate requires STORE_DRIVER=postgres")
}

func TestServe_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	root := newRootCmd()
	root.SetArgs([]string{"serve"})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}
