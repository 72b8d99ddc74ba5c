package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayLocalSession(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("server:\n  addr: \"127.0.0.1:0\"\nsource:\n  type: none\n"), 0o600))
	batchFile := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(batchFile, []byte(`[
		{"id": 1, "finder": "FLIPPER", "sold": true, "target_price": 5000000,
		 "auction": {"uuid": "a1", "tag": "HYPERION", "starting_bid": 1000000, "bin": true}}
	]`), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", "-c", cfgFile, batchFile})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "candidates=1 sent=0 blocked=1")
	assert.Contains(t, out.String(), "blocked 1: sold")
}

func TestReplayMqttNeedsMqttSource(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("source:\n  type: none\n"), 0o600))
	batchFile := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(batchFile, []byte(`{"id": 2, "finder": "SNIPER"}`), 0o600))

	rootCmd.SetArgs([]string{"replay", "--mqtt", "-c", cfgFile, batchFile})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt source")
	replayPublish = false
}
