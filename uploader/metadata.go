package uploader

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MetadataBuilder turns archive records into standalone metadata documents.
type MetadataBuilder struct {
	Strategy Strategy
	Opener   DatasetOpener
	OutDir   string
}

// BuildResult tells the caller what Build changed.
type BuildResult struct {
	Path       string
	HashSum    string
	NewVersion bool
}

// Build hashes the record's file, assembles and validates its document,
// writes <OutDir>/<key>.json and stores the document, path and hash on rec.
// A record whose content changed after it was uploaded starts a new version.
func (b *MetadataBuilder) Build(key string, rec *ArchiveRecord) (BuildResult, error) {
	var res BuildResult

	sum, err := HashFile(rec.FilePath)
	if err != nil {
		return res, err
	}
	ds, err := b.Opener.Open(rec.FilePath)
	if err != nil {
		return res, fmt.Errorf("open %s: %w", rec.FileName, err)
	}
	defer ds.Close()

	doc, err := b.document(rec, ds, sum)
	if err != nil {
		return res, err
	}

	// rec only changes once the document is on disk.
	next := *rec
	if rec.HashSum != "" && rec.HashSum != sum && (rec.FileDataURL != "" || rec.FileMetadataURL != "") {
		next.Versions = append([]string{}, rec.Versions...)
		next.rotateVersion()
		res.NewVersion = true
		doc.IsNextVersionOf = nextVersionOf(&next)
	}

	if err := ValidateDocument(doc); err != nil {
		return res, err
	}
	out := filepath.Join(b.OutDir, key+".json")
	if err := writeDocument(out, doc); err != nil {
		return res, err
	}

	next.JSON = doc
	next.JSONFilePath = out
	next.HashSum = sum
	*rec = next
	res.Path = out
	res.HashSum = sum
	return res, nil
}

func (b *MetadataBuilder) document(rec *ArchiveRecord, ds Dataset, sum string) (*MetadataDocument, error) {
	s := b.Strategy
	desc, err := s.Describe(rec, ds)
	if err != nil {
		return nil, err
	}
	prod, err := s.Production(rec, ds)
	if err != nil {
		return nil, err
	}
	spatial, err := s.SpatialBox(ds)
	if err != nil {
		return nil, fmt.Errorf("%s: spatial coverage: %w", rec.FileName, err)
	}
	licence, err := s.Licence()
	if err != nil {
		return nil, err
	}
	first, last, err := ds.TimeBounds()
	if err != nil {
		return nil, fmt.Errorf("%s: time bounds: %w", rec.FileName, err)
	}

	return &MetadataDocument{
		FileName:            rec.FileName,
		HashSum:             sum,
		IsNextVersionOf:     nextVersionOf(rec),
		ObjectSpecification: rec.DatasetObjectSpec,
		References: References{
			Keywords: desc.Keywords,
			Licence:  licence,
		},
		SpecificInfo: SpecificInfo{
			Description: desc.Description,
			Production:  prod,
			Spatial:     spatial,
			Temporal: Temporal{
				Interval: Interval{
					Start: FormatPortalTime(first),
					Stop:  FormatPortalTime(last),
				},
				Resolution: s.Resolution(),
			},
			Title:     desc.Title,
			Variables: s.Variables(ds),
		},
		SubmitterID: s.Submitter(),
	}, nil
}

// nextVersionOf is the object id at the end of the last versions entry.
func nextVersionOf(rec *ArchiveRecord) NextVersion {
	last, ok := rec.LastVersion()
	if !ok {
		return ""
	}
	return NextVersion(path.Base(strings.TrimRight(last, "/")))
}

func writeDocument(p string, doc *MetadataDocument) error {
	b, err := encodeIndented(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	if err := writeFileAtomic(p, b); err != nil {
		return err
	}
	return nil
}

// ReadDocument loads a standalone metadata document from disk.
func ReadDocument(p string) (*MetadataDocument, []byte, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, nil, fmt.Errorf("read metadata %s: %w", p, err)
	}
	var doc MetadataDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode metadata %s: %w", p, err)
	}
	return &doc, b, nil
}
