package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Endpoints are the portal URLs zupload talks to.
type Endpoints struct {
	TryIngest       string `yaml:"try_ingest"`
	MetadataUpload  string `yaml:"metadata_upload"`
	MetadataStaging string `yaml:"metadata_staging"`
	Login           string `yaml:"login"`
	WhoAmI          string `yaml:"whoami"`
}

// DefaultEndpoints returns the production portal URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		TryIngest:       "https://data.icos-cp.eu/tryingest",
		MetadataUpload:  "https://meta.icos-cp.eu/upload",
		MetadataStaging: "https://metastaging.icos-cp.eu/upload",
		Login:           "https://cpauth.icos-cp.eu/password/login",
		WhoAmI:          "https://cpauth.icos-cp.eu/whoami",
	}
}

// WithDefaults fills empty fields from DefaultEndpoints.
func (e Endpoints) WithDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.TryIngest == "" {
		e.TryIngest = d.TryIngest
	}
	if e.MetadataUpload == "" {
		e.MetadataUpload = d.MetadataUpload
	}
	if e.MetadataStaging == "" {
		e.MetadataStaging = d.MetadataStaging
	}
	if e.Login == "" {
		e.Login = d.Login
	}
	if e.WhoAmI == "" {
		e.WhoAmI = d.WhoAmI
	}
	return e
}

// Client performs portal calls. Upload calls carry the session cookie set by
// Authenticate or SetCookie.
type Client struct {
	http       *httpClient
	endpoints  Endpoints
	production bool
	cookie     string
}

// New builds a Client. production selects the production metadata endpoint
// over staging.
func New(cfg HTTPConfig, endpoints Endpoints, production bool) *Client {
	return &Client{
		http:       newHTTPClient(cfg),
		endpoints:  endpoints.WithDefaults(),
		production: production,
	}
}

// Endpoints returns the resolved endpoint set.
func (c *Client) Endpoints() Endpoints { return c.endpoints }

// SetCookie sets the raw Cookie header value used for uploads.
func (c *Client) SetCookie(cookie string) { c.cookie = strings.TrimSpace(cookie) }

// Cookie returns the current Cookie header value.
func (c *Client) Cookie() string { return c.cookie }

// MetadataEndpoint is the upload URL selected by the production flag.
func (c *Client) MetadataEndpoint() string {
	if c.production {
		return c.endpoints.MetadataUpload
	}
	return c.endpoints.MetadataStaging
}

// TryIngest PUTs the file at filePath to the dry-run endpoint. varNames is
// the JSON-encoded variable list, or nil to omit the parameter.
func (c *Client) TryIngest(ctx context.Context, endpoint, filePath, specURI string, varNames *string) (Response, error) {
	if endpoint == "" {
		endpoint = c.endpoints.TryIngest
	}
	q := url.Values{}
	q.Set("specUri", specURI)
	if varNames != nil {
		q.Set("varnames", *varNames)
	}
	u, err := withQuery(endpoint, q)
	if err != nil {
		return Response{}, err
	}
	resp, err := c.http.do(ctx, http.MethodPut, u, FileBody(filePath), nil)
	if err != nil {
		return Response{}, fmt.Errorf("try ingest %s: %w", filePath, err)
	}
	return readResponse(resp)
}

// UploadMetadata POSTs a metadata document.
func (c *Client) UploadMetadata(ctx context.Context, doc []byte) (Response, error) {
	h := c.authHeaders()
	h.Set("Content-Type", "application/json")
	resp, err := c.http.do(ctx, http.MethodPost, c.MetadataEndpoint(), BytesBody(doc), h)
	if err != nil {
		return Response{}, fmt.Errorf("upload metadata: %w", err)
	}
	return readResponse(resp)
}

// UploadData PUTs the file bytes to the data object URL returned by the
// metadata upload.
func (c *Client) UploadData(ctx context.Context, dataURL, filePath string) (Response, error) {
	h := c.authHeaders()
	h.Set("Content-Type", "application/octet-stream")
	resp, err := c.http.do(ctx, http.MethodPut, dataURL, FileBody(filePath), h)
	if err != nil {
		return Response{}, fmt.Errorf("upload data %s: %w", filePath, err)
	}
	return readResponse(resp)
}

func (c *Client) authHeaders() http.Header {
	h := http.Header{}
	if c.cookie != "" {
		h.Set("Cookie", c.cookie)
	}
	return h
}

func withQuery(raw string, q url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", raw, err)
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

// LandingPage derives the metadata landing page from a data object URL by
// swapping the first "data" for "meta".
func LandingPage(dataURL string) string {
	return strings.Replace(dataURL, "data", "meta", 1)
}
