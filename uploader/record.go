package uploader

import (
	"encoding/json"
	"time"
)

// Handlers gate a record's participation in each stage of the current run.
// Fields are declared in JSON key order so encoding is stable.
type Handlers struct {
	ArchiveJSON    bool `json:"archive_json"`
	TryIngest      bool `json:"try_ingest"`
	UploadData     bool `json:"upload_data"`
	UploadMetadata bool `json:"upload_metadata"`
}

// AllHandlers returns a Handlers value with every gate set to on.
func AllHandlers(on bool) Handlers {
	return Handlers{ArchiveJSON: on, TryIngest: on, UploadData: on, UploadMetadata: on}
}

// TryIngestParams are the query parameters of a dry-run ingestion call.
// VarNames is nil when the file's variables could not be read.
type TryIngestParams struct {
	SpecURI  string  `json:"specUri"`
	VarNames *string `json:"varnames"`
}

// TryIngestComponents is the serialisable request descriptor for try-ingest.
type TryIngestComponents struct {
	FilePath string          `json:"file_path"`
	Params   TryIngestParams `json:"params"`
	URL      string          `json:"url"`
}

// RetryState marks a record whose last data upload failed.
type RetryState struct {
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error"`
	LastAttempt time.Time `json:"last_attempt"`
	Stage       string    `json:"stage"`
	StatusCode  int       `json:"status_code,omitempty"`
}

// ArchiveRecord is the per-key processing state persisted in the archive.
// Fields are declared in JSON key order so encoding is stable.
type ArchiveRecord struct {
	DatasetObjectSpec string               `json:"dataset_object_spec"`
	DatasetType       string               `json:"dataset_type"`
	FileDataURL       string               `json:"file_data_url,omitempty"`
	FileMetadataURL   string               `json:"file_metadata_url,omitempty"`
	FileName          string               `json:"file_name"`
	FilePath          string               `json:"file_path"`
	Handlers          Handlers             `json:"handlers"`
	HashSum           string               `json:"hash_sum,omitempty"`
	JSON              *MetadataDocument    `json:"json,omitempty"`
	JSONFilePath      string               `json:"json_file_path,omitempty"`
	Month             string               `json:"month,omitempty"`
	PID               string               `json:"pid,omitempty"`
	Retry             *RetryState          `json:"retry,omitempty"`
	TryIngest         *TryIngestComponents `json:"try_ingest_components,omitempty"`
	Variable          string               `json:"variable,omitempty"`
	Versions          []string             `json:"versions"`
	Year              string               `json:"year,omitempty"`
}

// NewArchiveRecord returns a freshly discovered record: every handler on and
// no previous versions.
func NewArchiveRecord(filePath, fileName string) *ArchiveRecord {
	return &ArchiveRecord{
		FilePath: filePath,
		FileName: fileName,
		Handlers: AllHandlers(true),
		Versions: []string{},
	}
}

// UnmarshalJSON fills in defaults for archives written before handlers and
// versions were always present.
func (r *ArchiveRecord) UnmarshalJSON(b []byte) error {
	type plain ArchiveRecord
	aux := struct {
		*plain
		Handlers *Handlers `json:"handlers"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Handlers == nil {
		r.Handlers = AllHandlers(true)
	} else {
		r.Handlers = *aux.Handlers
	}
	if r.Versions == nil {
		r.Versions = []string{}
	}
	return nil
}

// Uploaded reports whether both metadata and data reached the portal.
func (r *ArchiveRecord) Uploaded() bool {
	return r.FileDataURL != "" && r.PID != ""
}

// LastVersion returns the landing page of the previous version, if any.
func (r *ArchiveRecord) LastVersion() (string, bool) {
	if len(r.Versions) == 0 {
		return "", false
	}
	return r.Versions[len(r.Versions)-1], true
}

// rotateVersion moves the current landing page into versions and clears the
// upload markers so the record uploads again as a new version.
func (r *ArchiveRecord) rotateVersion() {
	if r.FileMetadataURL != "" {
		r.Versions = append(r.Versions, r.FileMetadataURL)
	}
	r.FileDataURL = ""
	r.FileMetadataURL = ""
	r.PID = ""
	r.Retry = nil
}
