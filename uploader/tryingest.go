package uploader

import (
	"context"
	"encoding/json"
	"fmt"

	"zupload/logger"
)

// TryIngestResult is what one dry-run worker hands back to the reducer.
type TryIngestResult struct {
	Key        string
	FileName   string
	StatusCode int
	Body       string
	Err        error
}

// OK reports a 2xx answer.
func (r TryIngestResult) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type tryIngestJob struct {
	key        string
	fileName   string
	components TryIngestComponents
}

// buildTryIngest assembles the dry-run descriptor for a file. varnames is
// left out when the dataset cannot be opened.
func buildTryIngest(endpoint, filePath, specURI string, opener DatasetOpener, s Strategy) (*TryIngestComponents, error) {
	c := &TryIngestComponents{
		FilePath: filePath,
		Params:   TryIngestParams{SpecURI: specURI},
		URL:      endpoint,
	}
	if opener == nil {
		return c, nil
	}
	ds, err := opener.Open(filePath)
	if err != nil {
		return c, err
	}
	defer ds.Close()
	names := s.Variables(ds)
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return c, err
	}
	v := string(b)
	c.Params.VarNames = &v
	return c, nil
}

func (r *Runner) tryIngest(ctx context.Context) error {
	var jobs []tryIngestJob
	for _, key := range r.archive.Keys() {
		rec := r.archive[key]
		if !rec.Handlers.TryIngest || rec.TryIngest == nil {
			continue
		}
		jobs = append(jobs, tryIngestJob{key: key, fileName: rec.FileName, components: *rec.TryIngest})
	}
	if len(jobs) == 0 {
		r.log.Info("nothing to try-ingest")
		return nil
	}
	r.log.Info("try-ingest start", logger.Int("files", len(jobs)), logger.Int("batch", r.cfg.TryIngestBatch))

	checked := 0
	work := func(ctx context.Context, j tryIngestJob) TryIngestResult {
		c := j.components
		resp, err := r.cfg.Portal.TryIngest(ctx, c.URL, c.FilePath, c.Params.SpecURI, c.Params.VarNames)
		return TryIngestResult{Key: j.key, FileName: j.fileName, StatusCode: resp.StatusCode, Body: resp.Body, Err: err}
	}
	reduce := func(results []TryIngestResult) error {
		for _, res := range results {
			rec := r.archive[res.Key]
			if !res.OK() {
				body := res.Body
				if res.Err != nil {
					body = res.Err.Error()
				}
				r.event(StageTryIngest, res.Key, rec, EventFailed, res.StatusCode, body)
				return &PortalError{Op: StageTryIngest.String(), FileName: res.FileName, StatusCode: res.StatusCode, Body: body}
			}
			checked++
			r.stats.TryIngested++
			r.event(StageTryIngest, res.Key, rec, EventOK, res.StatusCode, "")
			if r.cfg.Show.TryIngest {
				fmt.Fprintf(r.out, "Try-ingest OK (%d/%d): %s\n", checked, len(jobs), res.FileName)
			}
		}
		return nil
	}
	return RunBatches(ctx, jobs, r.cfg.TryIngestBatch, work, reduce)
}
