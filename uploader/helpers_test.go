package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zupload/portal"
)

type fakeDataset struct {
	vars   []string
	attrs  map[string]string
	ranges map[string][2]float64
	first  time.Time
	last   time.Time
}

func (d *fakeDataset) DataVariables() []string { return append([]string{}, d.vars...) }

func (d *fakeDataset) Attr(name string) (string, bool) {
	v, ok := d.attrs[name]
	return v, ok
}

func (d *fakeDataset) HasVariable(name string) bool {
	if _, ok := d.ranges[name]; ok {
		return true
	}
	for _, v := range d.vars {
		if v == name {
			return true
		}
	}
	return false
}

func (d *fakeDataset) Range(name string) (float64, float64, error) {
	r, ok := d.ranges[name]
	if !ok {
		return 0, 0, fmt.Errorf("no variable %s", name)
	}
	return r[0], r[1], nil
}

func (d *fakeDataset) TimeBounds() (time.Time, time.Time, error) {
	if d.first.IsZero() {
		return time.Time{}, time.Time{}, errors.New("no time")
	}
	return d.first, d.last, nil
}

func (d *fakeDataset) Close() error { return nil }

func cteHRDataset() *fakeDataset {
	return &fakeDataset{
		vars: []string{"nep", "time_bnds"},
		attrs: map[string]string{
			"comment":       "CTE-HR biospheric fluxes",
			"creation_date": "2023-07-01 12:00",
		},
		first: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		last:  time.Date(2023, 6, 30, 23, 0, 0, 0, time.UTC),
	}
}

// fakeOpener serves the same dataset for every path and counts opens.
type fakeOpener struct {
	mu    sync.Mutex
	ds    *fakeDataset
	fail  bool
	opens int
}

func (o *fakeOpener) Open(path string) (Dataset, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.fail {
		return nil, fmt.Errorf("cannot open %s", path)
	}
	return o.ds, nil
}

type mockPortalCall struct {
	op       string
	url      string
	filePath string
	specURI  string
	varNames *string
	body     []byte
}

// mockPortal answers every call with a canned response and records calls.
type mockPortal struct {
	mu    sync.Mutex
	calls []mockPortalCall

	tryStatus      int
	metaStatus     int
	dataStatus     int
	dataFailFirstN int
	dataURLPrefix  string
}

func newMockPortal() *mockPortal {
	return &mockPortal{
		tryStatus:     200,
		metaStatus:    200,
		dataStatus:    200,
		dataURLPrefix: "https://data.icos-cp.eu/objects/",
	}
}

func (m *mockPortal) TryIngest(ctx context.Context, endpoint, filePath, specURI string, varNames *string) (portal.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockPortalCall{op: "try_ingest", url: endpoint, filePath: filePath, specURI: specURI, varNames: varNames})
	return portal.Response{StatusCode: m.tryStatus, Body: "ok"}, nil
}

func (m *mockPortal) UploadMetadata(ctx context.Context, doc []byte) (portal.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockPortalCall{op: "upload_metadata", body: doc})
	if m.metaStatus != 200 {
		return portal.Response{StatusCode: m.metaStatus, Body: "metadata rejected"}, nil
	}
	n := 0
	for _, c := range m.calls {
		if c.op == "upload_metadata" {
			n++
		}
	}
	return portal.Response{StatusCode: 200, Body: fmt.Sprintf("%sobj%d\n", m.dataURLPrefix, n)}, nil
}

func (m *mockPortal) UploadData(ctx context.Context, dataURL, filePath string) (portal.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockPortalCall{op: "upload_data", url: dataURL, filePath: filePath})
	if m.dataFailFirstN > 0 {
		m.dataFailFirstN--
		return portal.Response{StatusCode: 504, Body: "gateway timeout"}, nil
	}
	if m.dataStatus != 200 {
		return portal.Response{StatusCode: m.dataStatus, Body: "data rejected"}, nil
	}
	return portal.Response{StatusCode: 200, Body: "11676/" + filepath.Base(filePath)}, nil
}

func (m *mockPortal) Calls(op string) []mockPortalCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPortalCall
	for _, c := range m.calls {
		if op == "" || c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// scriptedPrompter replays answers in order and fails when it runs out.
type scriptedPrompter struct {
	confirms []bool
	choices  []string
	asks     []string
	asked    []string
}

func (p *scriptedPrompter) Confirm(q string, def bool) (bool, error) {
	p.asked = append(p.asked, q)
	if len(p.confirms) == 0 {
		return false, fmt.Errorf("unexpected confirm %q", q)
	}
	v := p.confirms[0]
	p.confirms = p.confirms[1:]
	return v, nil
}

func (p *scriptedPrompter) Choose(q string, options []string) (string, error) {
	p.asked = append(p.asked, q)
	if len(p.choices) == 0 {
		return "", fmt.Errorf("unexpected choice %q", q)
	}
	v := p.choices[0]
	p.choices = p.choices[1:]
	return v, nil
}

func (p *scriptedPrompter) Ask(q string) (string, error) {
	p.asked = append(p.asked, q)
	if len(p.asks) == 0 {
		return "", fmt.Errorf("unexpected question %q", q)
	}
	v := p.asks[0]
	p.asks = p.asks[1:]
	return v, nil
}

func (p *scriptedPrompter) Secret(q string) (string, error) { return p.Ask(q) }

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mustStrategy(t *testing.T, reason string) *ProfileStrategy {
	t.Helper()
	p, err := FindProfile(BuiltinProfiles(), reason)
	require.NoError(t, err)
	s, err := NewStrategy(p, DefaultDirectory(), nil)
	require.NoError(t, err)
	return s
}
