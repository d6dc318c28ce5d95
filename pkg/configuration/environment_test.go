package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_LoadsExistingFiles(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env.local"), []byte("STRATIX_TEST_ENV_LOAD=ok\n"), 0o644))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(tmp))

	_ = os.Unsetenv("STRATIX_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("STRATIX_TEST_ENV_LOAD"))
}

func TestImportOptions_Validate(t *testing.T) {
	valid := ImportOptions{
		BatchSize:              100,
		SyncRowThreshold:       25,
		StreamingByteThreshold: 10 << 20,
		TxTimeout:              30 * time.Second,
		TxAttempts:             3,
		TxIsolation:            "read committed",
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*ImportOptions)
	}{
		{"zero batch size", func(o *ImportOptions) { o.BatchSize = 0 }},
		{"negative sync threshold", func(o *ImportOptions) { o.SyncRowThreshold = -1 }},
		{"zero streaming threshold", func(o *ImportOptions) { o.StreamingByteThreshold = 0 }},
		{"zero attempts", func(o *ImportOptions) { o.TxAttempts = 0 }},
		{"bogus isolation", func(o *ImportOptions) { o.TxIsolation = "chaotic" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := valid
			tc.mutate(&opts)
			require.Error(t, opts.Validate())
		})
	}
}
