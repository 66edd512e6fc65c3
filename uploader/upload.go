package uploader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zupload/logger"
	"zupload/portal"
)

// PortalClient is the network side of the pipeline. *portal.Client
// implements it.
type PortalClient interface {
	TryIngest(ctx context.Context, endpoint, filePath, specURI string, varNames *string) (portal.Response, error)
	UploadMetadata(ctx context.Context, doc []byte) (portal.Response, error)
	UploadData(ctx context.Context, dataURL, filePath string) (portal.Response, error)
}

// metadataEligible reports whether rec still needs its metadata posted.
func metadataEligible(rec *ArchiveRecord) bool {
	return rec.Handlers.UploadMetadata && rec.JSONFilePath != "" && rec.FileDataURL == ""
}

// dataEligible reports whether rec has a data object waiting for bytes.
func dataEligible(rec *ArchiveRecord) bool {
	return rec.Handlers.UploadData && rec.FileDataURL != "" && rec.PID == ""
}

func (r *Runner) uploadMetadata(ctx context.Context) error {
	done := 0
	for _, key := range r.archive.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := r.archive[key]
		if !metadataEligible(rec) {
			continue
		}
		if err := r.authenticate(ctx); err != nil {
			return err
		}
		doc, raw, err := ReadDocument(rec.JSONFilePath)
		if err != nil {
			return err
		}
		if doc.HashSum != rec.HashSum {
			return &HashMismatchError{FileName: rec.FileName, Expected: rec.HashSum, Actual: doc.HashSum}
		}

		resp, err := r.cfg.Portal.UploadMetadata(ctx, raw)
		if err != nil {
			r.event(StageUploadMetadata, key, rec, EventFailed, 0, err.Error())
			return &PortalError{Op: StageUploadMetadata.String(), FileName: rec.FileName, Body: err.Error()}
		}
		if resp.StatusCode != 200 {
			r.event(StageUploadMetadata, key, rec, EventFailed, resp.StatusCode, resp.Body)
			return &PortalError{Op: StageUploadMetadata.String(), FileName: rec.FileName, StatusCode: resp.StatusCode, Body: resp.Body}
		}

		rec.FileDataURL = strings.TrimSpace(resp.Body)
		rec.FileMetadataURL = portal.LandingPage(rec.FileDataURL)
		done++
		r.stats.MetadataUploaded++
		r.event(StageUploadMetadata, key, rec, EventOK, resp.StatusCode, rec.FileDataURL)
		if r.cfg.Show.UploadMetadata {
			fmt.Fprintf(r.out, "Metadata uploaded (%d): %s -> %s\n", done, rec.FileName, rec.FileMetadataURL)
		}
	}
	r.log.Info("metadata upload done", logger.Int("uploaded", done))
	return nil
}

func (r *Runner) uploadData(ctx context.Context) error {
	done := 0
	for _, key := range r.archive.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := r.archive[key]
		if !dataEligible(rec) {
			continue
		}
		if err := r.authenticate(ctx); err != nil {
			return err
		}
		if err := verifyUploadHash(rec); err != nil {
			return err
		}

		resp, err := r.cfg.Portal.UploadData(ctx, rec.FileDataURL, rec.FilePath)
		if err == nil && resp.StatusCode == 200 {
			rec.PID = strings.TrimSpace(resp.Body)
			rec.Retry = nil
			done++
			r.stats.DataUploaded++
			r.event(StageUploadData, key, rec, EventOK, resp.StatusCode, rec.PID)
			if r.cfg.Show.UploadData {
				fmt.Fprintf(r.out, "Data uploaded (%d): %s -> %s\n", done, rec.FileName, rec.PID)
			}
			continue
		}

		perr := &PortalError{Op: StageUploadData.String(), FileName: rec.FileName, StatusCode: resp.StatusCode, Body: resp.Body}
		if err != nil {
			perr.Body = err.Error()
		}
		r.markRetry(key, rec, perr)
		r.stats.DataFailed++
		if errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintln(r.out, Diagnostic(perr))
		if r.cfg.Prompt == nil {
			r.log.Warn("data upload failed, continuing", logger.String("key", key), logger.Int("status", perr.StatusCode))
			continue
		}
		cont, cerr := r.cfg.Prompt.Confirm("Continue with the next file?", true)
		if cerr != nil {
			return cerr
		}
		if !cont {
			return fmt.Errorf("%w: %w", ErrAborted, perr)
		}
	}
	r.log.Info("data upload done", logger.Int("uploaded", done))
	return nil
}

// verifyUploadHash recomputes the live hash and checks it against both the
// archived hash and the one advertised in the metadata document.
func verifyUploadHash(rec *ArchiveRecord) error {
	live, err := HashFile(rec.FilePath)
	if err != nil {
		return err
	}
	advertised := rec.HashSum
	if rec.JSON != nil {
		advertised = rec.JSON.HashSum
	}
	if advertised != rec.HashSum {
		return &HashMismatchError{FileName: rec.FileName, Expected: advertised, Actual: rec.HashSum}
	}
	if live != advertised {
		return &HashMismatchError{FileName: rec.FileName, Expected: advertised, Actual: live}
	}
	return nil
}

func (r *Runner) markRetry(key string, rec *ArchiveRecord, perr *PortalError) {
	attempts := 1
	if rec.Retry != nil {
		attempts = rec.Retry.Attempts + 1
	}
	rec.Retry = &RetryState{
		Attempts:    attempts,
		Error:       truncate(perr.Body, maxDiagnosticBody),
		LastAttempt: r.now().UTC().Truncate(time.Second),
		Stage:       StageUploadData.String(),
		StatusCode:  perr.StatusCode,
	}
	r.event(StageUploadData, key, rec, EventFailed, perr.StatusCode, perr.Body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
