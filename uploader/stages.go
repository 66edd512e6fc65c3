package uploader

import (
	"fmt"
	"strings"
)

// Stage is one step of the pipeline, in execution order.
type Stage int

const (
	StageArchiveFiles Stage = iota
	StageFillHandlers
	StageTryIngest
	StageArchiveJSON
	StageUploadMetadata
	StageUploadData
	StageStoreArchive

	stageCount
)

// DefaultStages runs every stage.
const DefaultStages = "1111111"

var stageNames = [stageCount]string{
	"archive_files",
	"fill_handlers",
	"try_ingest",
	"archive_json",
	"upload_metadata",
	"upload_data",
	"store_archive",
}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// AllStages lists the stages in execution order.
func AllStages() []Stage {
	out := make([]Stage, 0, stageCount)
	for s := Stage(0); s < stageCount; s++ {
		out = append(out, s)
	}
	return out
}

// StageSet is the parsed bit-string: one flag per stage.
type StageSet [stageCount]bool

// ParseStages reads a string of exactly one 0/1 character per stage, in
// execution order.
func ParseStages(bits string) (StageSet, error) {
	var set StageSet
	bits = strings.TrimSpace(bits)
	if len(bits) != int(stageCount) {
		return set, fmt.Errorf("stage string %q: want %d bits (%s)", bits, stageCount, strings.Join(stageNames[:], ", "))
	}
	for i, c := range bits {
		switch c {
		case '1':
			set[i] = true
		case '0':
		default:
			return set, fmt.Errorf("stage string %q: bit %d is %q, want 0 or 1", bits, i+1, c)
		}
	}
	return set, nil
}

// Enabled reports whether s is switched on.
func (set StageSet) Enabled(s Stage) bool {
	return s >= 0 && s < stageCount && set[s]
}

// Uploads reports whether any stage needs an authenticated session.
func (set StageSet) Uploads() bool {
	return set[StageUploadMetadata] || set[StageUploadData]
}

func (set StageSet) String() string {
	var b strings.Builder
	for _, on := range set {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
