package uploader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStages(t *testing.T) {
	set, err := ParseStages(DefaultStages)
	require.NoError(t, err)
	for _, s := range AllStages() {
		require.True(t, set.Enabled(s), s.String())
	}
	require.Equal(t, DefaultStages, set.String())
	require.True(t, set.Uploads())

	set, err = ParseStages("1011000")
	require.NoError(t, err)
	require.True(t, set.Enabled(StageArchiveFiles))
	require.False(t, set.Enabled(StageFillHandlers))
	require.True(t, set.Enabled(StageTryIngest))
	require.True(t, set.Enabled(StageArchiveJSON))
	require.False(t, set.Enabled(StageUploadMetadata))
	require.False(t, set.Enabled(StageUploadData))
	require.False(t, set.Enabled(StageStoreArchive))
	require.False(t, set.Uploads())
	require.Equal(t, "1011000", set.String())
}

func TestParseStages_Rejects(t *testing.T) {
	for _, bits := range []string{"", "111111", "11111111", "11111a1", "1111 11"} {
		_, err := ParseStages(bits)
		require.Error(t, err, bits)
	}
}

func TestStageNames(t *testing.T) {
	names := make([]string, 0, len(AllStages()))
	for _, s := range AllStages() {
		names = append(names, s.String())
	}
	require.Equal(t, []string{
		"archive_files", "fill_handlers", "try_ingest", "archive_json",
		"upload_metadata", "upload_data", "store_archive",
	}, names)
	require.Equal(t, "stage(9)", Stage(9).String())
	require.False(t, StageSet{}.Enabled(Stage(-1)))
}
