package uploader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestShowConfig_Forms(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want ShowConfig
	}{
		{"mapping", "show:\n  try_ingest: true\n  upload_data: true\n", ShowConfig{TryIngest: true, UploadData: true, set: true}},
		{"list", "show: [input_files, uploads]\n", ShowConfig{InputFiles: true, Uploads: true, set: true}},
		{"all", "show: all\n", ShowAll()},
		{"none", "show: none\n", ShowConfig{set: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg FileConfig
			require.NoError(t, yaml.Unmarshal([]byte(tt.doc), &cfg))
			require.Equal(t, tt.want, cfg.Show)
		})
	}

	var cfg FileConfig
	require.Error(t, yaml.Unmarshal([]byte("show: [colours]\n"), &cfg))
	require.Error(t, yaml.Unmarshal([]byte("show: sometimes\n"), &cfg))
}

func TestApplyDefaults(t *testing.T) {
	cfg := FileConfig{Reason: "cte-hr"}
	cfg.ApplyDefaults()

	master := filepath.Join("input-files", "cte-hr")
	require.Equal(t, DefaultStages, cfg.Stages)
	require.Equal(t, "*.nc", cfg.Pattern)
	require.Equal(t, filepath.Join(master, "in-out-archives", "cte-hr.json"), cfg.ArchivePath)
	require.Equal(t, filepath.Join(master, "json-standalone-files"), cfg.JSONStandaloneFiles)
	require.Equal(t, filepath.Join(master, "journal.db"), cfg.JournalPath)
	require.Equal(t, 2, cfg.TryIngestBatch)
	require.True(t, cfg.IsInteractive())
	require.Equal(t, ShowAll(), cfg.Show)
	require.Equal(t, "zupload", cfg.Metrics.Job)

	// An explicit show: none survives defaults.
	off := false
	cfg = FileConfig{Reason: "cte-hr", Show: ShowConfig{set: true}, Interactive: &off, TryIngestBatch: 5}
	cfg.ApplyDefaults()
	require.Equal(t, ShowConfig{set: true}, cfg.Show)
	require.False(t, cfg.IsInteractive())
	require.Equal(t, 5, cfg.TryIngestBatch)
}

func TestLoadConfig_ResolveStrategy(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "zupload.yaml"), `
reason: gcp-inversions
data_dir: /data/gcp
excluded_variables: [ensemble_member]
directory:
  people:
    ingrid_luijkx: https://example.org/people/Ingrid
profiles:
  - reason: fluxcom
    key_rule: stem
    title: "FLUXCOM {{.FileName}}"
    creator: jacob_nelson
    host: mpi_bgc
    box: global
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/data/gcp", cfg.DataDir)

	s, err := cfg.ResolveStrategy()
	require.NoError(t, err)
	require.Equal(t, []string{"area", "ensemble_member_name", "cell_area", "ensemble_member"}, s.Profile().ExcludedVariables)

	uri, err := s.dir.Person("ingrid_luijkx")
	require.NoError(t, err)
	require.Equal(t, "https://example.org/people/Ingrid", uri)

	// The built-in row is not modified by the exclusions of one config.
	gcp, err := FindProfile(BuiltinProfiles(), "gcp-inversions")
	require.NoError(t, err)
	require.Len(t, gcp.ExcludedVariables, 3)

	cfg.Reason = "fluxcom"
	s, err = cfg.ResolveStrategy()
	require.NoError(t, err)
	require.Equal(t, "fluxcom", s.Reason())

	cfg.Reason = "unknown"
	_, err = cfg.ResolveStrategy()
	require.Error(t, err)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeFile(t, filepath.Join(t.TempDir(), "bad.yaml"), "reason: [unclosed\n")
	_, err = LoadConfig(path)
	require.Error(t, err)
}
