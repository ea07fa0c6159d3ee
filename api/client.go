// Package api is a client for the xlsx validator backend. Every request carries
// the live session token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"golang.org/x/oauth2"
)

// Kind selects the file collection on the backend.
type Kind string

const (
	KindTemplate      Kind = "template"
	KindConsolidation Kind = "consolidation"
)

const (
	xlsxExtension = ".xlsx"
	formFileField = "file"
	// ConsolidatedPrefix is prepended by the backend to the template name of a consolidated report.
	ConsolidatedPrefix = "Consolidated-"
)

// File is an upload part.
type File struct {
	Name    string
	Content io.Reader
}

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Unwrap maps a 404 onto ErrNotFound.
func (e *Error) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return apperrors.ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithBaseTransport sets the transport beneath the bearer token transport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport.(*oauth2.Transport).Base = rt
	}
}

// New returns a client for baseURL that authorises every request with src.
func New(baseURL string, src oauth2.TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: api base url %q", apperrors.ErrInvalidSetting, baseURL)
	}
	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &oauth2.Transport{Source: src},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(kind Kind, action string, name string) string {
	p := "/api/" + string(kind) + "/" + action
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return c.baseURL.String() + p
}

// List returns the sorted file names held for kind.
func (c *Client) List(ctx context.Context, kind Kind) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(kind, "list", ""), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[api List] %s", kind)
	}

	var raw []string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.Wrapf(err, "[api List] %s: decode", kind)
	}
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		names = append(names, strings.Trim(n, `"`))
	}
	sort.Strings(names)
	return names, nil
}

// Download opens the named file. The caller must close the reader.
func (c *Client) Download(ctx context.Context, kind Kind, name string) (io.ReadCloser, error) {
	if err := validatePathName(name); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(kind, "download", name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[api Download] %s", name)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, apperrors.Wrapf(responseError(resp), "[api Download] %s", name)
	}
	return resp.Body, nil
}

// Delete removes the named file and returns the backend's message.
func (c *Client) Delete(ctx context.Context, kind Kind, name string) (string, error) {
	if err := validatePathName(name); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(kind, "delete", name), nil)
	if err != nil {
		return "", err
	}
	body, err := c.do(req)
	if err != nil {
		return "", apperrors.Wrapf(err, "[api Delete] %s", name)
	}
	return strings.TrimSpace(string(body)), nil
}

// UploadTemplates stores new templates.
func (c *Client) UploadTemplates(ctx context.Context, files []File) (string, error) {
	req, err := c.multipartRequest(ctx, c.endpoint(KindTemplate, "upload", ""), files)
	if err != nil {
		return "", apperrors.Wrapf(err, "[api UploadTemplates]")
	}
	body, err := c.do(req)
	if err != nil {
		return "", apperrors.Wrapf(err, "[api UploadTemplates]")
	}
	return strings.TrimSpace(string(body)), nil
}

// Consolidate validates files against templateName and appends their rows to the
// consolidated report. isMerged requires an existing report.
func (c *Client) Consolidate(ctx context.Context, templateName string, isMerged bool, files []File) (string, error) {
	if strings.TrimSpace(templateName) == "" {
		return "", fmt.Errorf("%w: template name cannot be empty", apperrors.ErrInvalidRequest)
	}
	if err := validateName(templateName); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("templateName", templateName)
	q.Set("isMerged", strconv.FormatBool(isMerged))
	req, err := c.multipartRequest(ctx, c.endpoint(KindConsolidation, "upload", "")+"?"+q.Encode(), files)
	if err != nil {
		return "", apperrors.Wrapf(err, "[api Consolidate]")
	}
	body, err := c.do(req)
	if err != nil {
		return "", apperrors.Wrapf(err, "[api Consolidate]")
	}
	return strings.TrimSpace(string(body)), nil
}

// ConsolidatedName is the report name the backend uses for templateName.
func ConsolidatedName(templateName string) string {
	return ConsolidatedPrefix + templateName
}

func (c *Client) multipartRequest(ctx context.Context, target string, files []File) (*http.Request, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", apperrors.ErrInvalidRequest)
	}
	for _, f := range files {
		if err := validateName(f.Name); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(formFileField, f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, responseError(resp)
	}
	return io.ReadAll(resp.Body)
}

func responseError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
}

// validatePathName accepts any listed file name that fits in one path segment.
func validatePathName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: file name %q", apperrors.ErrInvalidRequest, name)
	}
	return nil
}

// validateName additionally requires a workbook, for uploads and template names.
func validateName(name string) error {
	if err := validatePathName(name); err != nil {
		return err
	}
	if !strings.HasSuffix(name, xlsxExtension) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidFileType, name)
	}
	return nil
}
