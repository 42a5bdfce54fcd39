package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brewie/voicegate/pkg/cli"
	"github.com/m-mizutani/gt"
)

func TestRunHistoryEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit", "voicegate.db")

	err := cli.Run(context.Background(), []string{"voicegate", "history", "--db", dbPath})
	gt.Nil(t, err)

	_, statErr := os.Stat(dbPath)
	gt.NoError(t, statErr)
}

func TestRunEnvFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "from-env.db")
	envPath := filepath.Join(dir, "test.env")
	gt.NoError(t, os.WriteFile(envPath, []byte("VOICEGATE_DB="+dbPath+"\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("VOICEGATE_DB") })

	err := cli.Run(context.Background(), []string{"voicegate", "--env-file", envPath, "history"})
	gt.Nil(t, err)

	_, statErr := os.Stat(dbPath)
	gt.NoError(t, statErr)
}

func TestRunMissingEnvFile(t *testing.T) {
	err := cli.Run(context.Background(), []string{"voicegate", "--env-file", filepath.Join(t.TempDir(), "none.env"), "history"})
	gt.NotNil(t, err)
	gt.Equal(t, err.Code, 1)
}

func TestRunUnknownCycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "voicegate.db")

	err := cli.Run(context.Background(), []string{"voicegate", "history", "--db", dbPath, "no-such-cycle"})
	gt.NotNil(t, err)
}
