package uploader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"zupload/logger"
	"zupload/portal"
)

// ShowConfig toggles per-stage progress lines.
type ShowConfig struct {
	InputFiles     bool `yaml:"input_files"`
	ArchiveFiles   bool `yaml:"archive_files"`
	TryIngest      bool `yaml:"try_ingest"`
	ArchiveJSON    bool `yaml:"archive_json"`
	UploadMetadata bool `yaml:"upload_metadata"`
	UploadData     bool `yaml:"upload_data"`
	Uploads        bool `yaml:"uploads"`

	set bool
}

// ShowAll turns every progress toggle on.
func ShowAll() ShowConfig {
	return ShowConfig{
		InputFiles: true, ArchiveFiles: true, TryIngest: true, ArchiveJSON: true,
		UploadMetadata: true, UploadData: true, Uploads: true, set: true,
	}
}

// UnmarshalYAML accepts:
//  1. mapping form:
//     show:
//     try_ingest: true
//     upload_data: false
//  2. list form, naming the toggles to switch on:
//     show: [try_ingest, upload_data]
//  3. scalar form: show: all | none
func (s *ShowConfig) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case yaml.MappingNode:
		type plain ShowConfig
		var p plain
		if err := value.Decode(&p); err != nil {
			return err
		}
		*s = ShowConfig(p)
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*s = ShowConfig{}
		for _, n := range names {
			if err := s.enable(strings.TrimSpace(n)); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		switch strings.ToLower(strings.TrimSpace(value.Value)) {
		case "all", "true":
			*s = ShowAll()
		case "none", "false", "":
			*s = ShowConfig{}
		default:
			return fmt.Errorf("show: unknown value %q", value.Value)
		}
	default:
		return nil
	}
	s.set = true
	return nil
}

func (s *ShowConfig) enable(name string) error {
	switch name {
	case "input_files":
		s.InputFiles = true
	case "archive_files":
		s.ArchiveFiles = true
	case "try_ingest":
		s.TryIngest = true
	case "archive_json":
		s.ArchiveJSON = true
	case "upload_metadata":
		s.UploadMetadata = true
	case "upload_data":
		s.UploadData = true
	case "uploads":
		s.Uploads = true
	default:
		return fmt.Errorf("show: unknown toggle %q", name)
	}
	return nil
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

type FileConfig struct {
	Reason string `yaml:"reason"`
	Stages string `yaml:"stages"`

	DataDir string `yaml:"data_dir"`
	Pattern string `yaml:"pattern"`

	// MasterDir anchors the default archive, metadata and journal paths.
	MasterDir           string `yaml:"master_dir"`
	ArchivePath         string `yaml:"archive_path"`
	JSONStandaloneFiles string `yaml:"json_standalone_files"`
	JournalPath         string `yaml:"journal_path"`
	CookieFile          string `yaml:"cookie_file"`

	TryIngestBatch     int  `yaml:"try_ingest_batch"`
	UploadToProduction bool `yaml:"upload_to_production"`
	// OverwriteArchive skips the overwrite confirmation for unattended runs.
	OverwriteArchive bool     `yaml:"overwrite_archive"`
	Interactive      *bool    `yaml:"interactive"`
	SkipUnmatched    bool     `yaml:"skip_unmatched"`
	ExcludedVars     []string `yaml:"excluded_variables"`

	Show      ShowConfig        `yaml:"show"`
	Endpoints portal.Endpoints  `yaml:"endpoints"`
	HTTP      portal.HTTPConfig `yaml:"http"`
	Log       logger.Config     `yaml:"log"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Directory Directory         `yaml:"directory"`
	Profiles  []Profile         `yaml:"profiles"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills derived paths and zero values.
func (c *FileConfig) ApplyDefaults() {
	if c.Stages == "" {
		c.Stages = DefaultStages
	}
	if c.Pattern == "" {
		c.Pattern = "*.nc"
	}
	if c.MasterDir == "" && c.Reason != "" {
		c.MasterDir = filepath.Join("input-files", c.Reason)
	}
	if c.ArchivePath == "" {
		c.ArchivePath = filepath.Join(c.MasterDir, "in-out-archives", c.Reason+".json")
	}
	if c.JSONStandaloneFiles == "" {
		c.JSONStandaloneFiles = filepath.Join(c.MasterDir, "json-standalone-files")
	}
	if c.JournalPath == "" {
		c.JournalPath = filepath.Join(c.MasterDir, "journal.db")
	}
	if c.CookieFile == "" {
		c.CookieFile = "cookies.txt"
	}
	if c.TryIngestBatch <= 0 {
		c.TryIngestBatch = 2
	}
	if c.Interactive == nil {
		on := true
		c.Interactive = &on
	}
	if !c.Show.set {
		c.Show = ShowAll()
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "zupload"
	}
	c.Endpoints = c.Endpoints.WithDefaults()
}

// IsInteractive reports whether the operator is expected at the terminal.
func (c *FileConfig) IsInteractive() bool {
	return c.Interactive == nil || *c.Interactive
}

// ResolveStrategy picks the profile for c.Reason and binds it to the merged
// directory and rule table.
func (c *FileConfig) ResolveStrategy() (*ProfileStrategy, error) {
	profiles := MergeProfiles(BuiltinProfiles(), c.Profiles)
	p, err := FindProfile(profiles, c.Reason)
	if err != nil {
		return nil, err
	}
	p.ExcludedVariables = append(append([]string{}, p.ExcludedVariables...), c.ExcludedVars...)
	return NewStrategy(p, DefaultDirectory().Merge(c.Directory), nil)
}
