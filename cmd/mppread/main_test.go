package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "mppread.toml")
	content := "[log]\nlevel = \"error\"\n\n[storage]\nbackend = \"local\"\nlocal_path = \"" + filepath.ToSlash(dir) + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSampleThenDecode(t *testing.T) {
	dir := t.TempDir()
	configFile := writeConfig(t, dir)

	require.NoError(t, execute(t, "--config", configFile, "sample", "bundles/plan.mppb"))
	assert.FileExists(t, filepath.Join(dir, "bundles", "plan.mppb"))

	tests := []struct {
		name  string
		args  []string
		files []string
	}{
		{"json", []string{"-f", "json"}, []string{"plan.json"}},
		{"parquet to prefix", []string{"-f", "parquet", "-o", "exports/"}, []string{"exports/plan/task.parquet", "exports/plan/timephased.parquet"}},
		{"sqlite", []string{"-f", "sqlite", "-o", "db/all.db", "--class", "task,resource"}, []string{"db/all.db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", configFile, "-O", "json", "decode", "bundles/plan.mppb"}, tt.args...)
			require.NoError(t, execute(t, args...))
			for _, f := range tt.files {
				assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(f)))
			}
		})
	}
}

func TestDecodePrefix(t *testing.T) {
	dir := t.TempDir()
	configFile := writeConfig(t, dir)
	require.NoError(t, execute(t, "--config", configFile, "sample", "in/a.mppb"))
	require.NoError(t, execute(t, "--config", configFile, "sample", "in/b.mppb", "--compression", "none"))

	require.NoError(t, execute(t, "--config", configFile, "-O", "json", "decode", "in/", "-f", "msgpack", "-o", "out"))
	assert.FileExists(t, filepath.Join(dir, "out", "a.msgpack"))
	assert.FileExists(t, filepath.Join(dir, "out", "b.msgpack"))

	assert.Error(t, execute(t, "--config", configFile, "decode", "empty/"))
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	configFile := writeConfig(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.mppb"), []byte("not a bundle"), 0644))

	tests := []struct {
		name string
		args []string
	}{
		{"missing bundle", []string{"decode", "missing.mppb"}},
		{"corrupt bundle", []string{"decode", "junk.mppb"}},
		{"unknown export format", []string{"decode", "junk.mppb", "-f", "csv"}},
		{"bad output format", []string{"-O", "yaml", "list"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, execute(t, append([]string{"--config", configFile}, tt.args...)...))
		})
	}
}

func TestSchemaAndList(t *testing.T) {
	dir := t.TempDir()
	configFile := writeConfig(t, dir)
	require.NoError(t, execute(t, "--config", configFile, "sample", "plan.mppb", "--compression", "none"))

	assert.NoError(t, execute(t, "--config", configFile, "schema", "plan.mppb", "--class", "assignment"))
	assert.Error(t, execute(t, "--config", configFile, "schema", "plan.mppb", "--class", "calendar"))
	assert.NoError(t, execute(t, "--config", configFile, "-O", "json", "list"))
}

func TestBundleName(t *testing.T) {
	assert.Equal(t, "plan", bundleName("bundles/2024/plan.mppb"))
	assert.Equal(t, "plan", bundleName("plan"))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "2.0 MiB", humanBytes(2<<20))
}
