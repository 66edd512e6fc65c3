package uploader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"zupload/portal"
)

// countingPortal is a portal server that counts every request it sees.
func countingPortal(t *testing.T) (*portal.Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	client := portal.New(portal.HTTPConfig{MaxRetries: 0}, portal.Endpoints{
		TryIngest:       srv.URL + "/tryingest",
		MetadataUpload:  srv.URL + "/upload",
		MetadataStaging: srv.URL + "/upload",
		Login:           srv.URL + "/password/login",
		WhoAmI:          srv.URL + "/whoami",
	}, false)
	return client, &hits
}

func TestRunner_IneligibleUploadsNeverTouchThePortal(t *testing.T) {
	for _, tc := range []struct {
		name   string
		stages string
		cookie bool
	}{
		{"data without cookie", "0000010", false},
		{"data with cached cookie", "0000010", true},
		{"metadata without cookie", "0000100", false},
		{"metadata with cached cookie", "0000100", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newRunnerEnv(t)
			client, hits := countingPortal(t)

			rec := NewArchiveRecord(filepath.Join(e.dataDir, "nep.202306.nc"), "nep.202306.nc")
			rec.Handlers = AllHandlers(true)
			rec.Handlers.UploadData = false
			rec.Handlers.UploadMetadata = false
			_, err := (&ArchiveStore{Path: e.archivePath, Force: true}).Save(Archive{"nep.202306": rec})
			require.NoError(t, err)

			cookieFile := filepath.Join(t.TempDir(), "cookie.txt")
			if tc.cookie {
				require.NoError(t, portal.WriteCookieFile(cookieFile, "cpauthToken=stale"))
			}

			cfg := e.config(t, tc.stages)
			cfg.Portal = client
			cfg.Authenticate = func(ctx context.Context) error {
				return client.Authenticate(ctx, portal.SessionConfig{CookieFile: cookieFile})
			}
			res, err := e.run(t, cfg)
			require.NoError(t, err)
			require.Zero(t, res.Stats.MetadataUploaded)
			require.Zero(t, res.Stats.DataUploaded)
			require.Zero(t, hits.Load())
		})
	}
}
