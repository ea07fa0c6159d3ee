package shell_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/xlsx-validator-shell/api"
	"github.com/jrsteele09/xlsx-validator-shell/shell"
	"github.com/stretchr/testify/require"
)

func mountedServer(t *testing.T) (*shell.Server, *shell.ViewProps, *fakeAPI) {
	t.Helper()
	s := newServer(t)
	props, files := newProps(true)
	require.NoError(t, s.Mount(shell.NewRouteTable(props)))
	return s, props, files
}

func uploadRequest(t *testing.T, target string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, target, &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) (string, url.Values) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Path, loc.Query()
}

func TestHomeShowsSession(t *testing.T) {
	s, props, _ := mountedServer(t)
	props.Session.(*fakeSession).validFor = 67 * time.Second

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Signed in as alice")
	require.Contains(t, body, "67 seconds")
	require.Contains(t, body, "https://api.example.com")
}

func TestTemplatesListed(t *testing.T) {
	s, _, files := mountedServer(t)
	files.put(api.KindTemplate, "budget.xlsx", "b")
	files.put(api.KindTemplate, "assets.xlsx", "a")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/templates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "/templates/download/assets.xlsx")
	require.Contains(t, body, "/templates/delete/budget.xlsx")
	require.Less(t, strings.Index(body, "assets.xlsx"), strings.Index(body, "budget.xlsx"))
}

func TestListFailureRendersError(t *testing.T) {
	s, _, files := mountedServer(t)
	files.listErr = &api.Error{Status: 500, Message: "backend unavailable"}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/templates", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "backend unavailable")
}

func TestTemplatesUpload(t *testing.T) {
	s, _, files := mountedServer(t)

	rec := serve(s, uploadRequest(t, "/templates/upload", nil, map[string]string{"budget.xlsx": "content"}))
	path, q := redirectQuery(t, rec)
	require.Equal(t, "/templates", path)
	require.Equal(t, "Uploaded 1 template(s) successfully", q.Get("msg"))
	require.True(t, files.has(api.KindTemplate, "budget.xlsx"))
}

func TestTemplatesUploadWithoutFiles(t *testing.T) {
	s, _, _ := mountedServer(t)

	rec := serve(s, uploadRequest(t, "/templates/upload", map[string]string{"other": "x"}, nil))
	_, q := redirectQuery(t, rec)
	require.Contains(t, q.Get("error"), "no form key 'file'")
}

func TestTemplatesDelete(t *testing.T) {
	s, _, files := mountedServer(t)
	files.put(api.KindTemplate, "budget.xlsx", "b")

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/templates/delete/budget.xlsx", nil))
	path, q := redirectQuery(t, rec)
	require.Equal(t, "/templates", path)
	require.Equal(t, "Deleted budget.xlsx", q.Get("msg"))
	require.False(t, files.has(api.KindTemplate, "budget.xlsx"))

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/templates/delete/budget.xlsx", nil))
	_, q = redirectQuery(t, rec)
	require.Equal(t, "File not found", q.Get("error"))
}

func TestDownloadProxiesContent(t *testing.T) {
	s, _, files := mountedServer(t)
	files.put(api.KindConsolidation, "Consolidated-budget.xlsx", "report bytes")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/consolidations/download/Consolidated-budget.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "report bytes", rec.Body.String())
	require.Equal(t, `attachment; filename="Consolidated-budget.xlsx"`, rec.Header().Get("Content-Disposition"))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/consolidations/download/missing.xlsx", nil))
	path, q := redirectQuery(t, rec)
	require.Equal(t, "/consolidations", path)
	require.Equal(t, "File not found", q.Get("error"))
}

func TestConsolidationsOffersTemplates(t *testing.T) {
	s, _, files := mountedServer(t)
	files.put(api.KindTemplate, "budget.xlsx", "b")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/consolidations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `<option value="budget.xlsx">`)
	require.Contains(t, body, "Consolidated-budget.xlsx")
	require.Contains(t, body, "No consolidations yet")
}

func TestConsolidate(t *testing.T) {
	s, _, files := mountedServer(t)
	files.put(api.KindTemplate, "budget.xlsx", "b")

	req := uploadRequest(t, "/consolidations/upload",
		map[string]string{"templateName": "budget.xlsx", "isMerged": "true"},
		map[string]string{"north.xlsx": "n", "south.xlsx": "s"})
	rec := serve(s, req)

	path, q := redirectQuery(t, rec)
	require.Equal(t, "/consolidations", path)
	require.Equal(t, "Consolidated budget.xlsx", q.Get("msg"))

	calls := files.consolidations()
	require.Len(t, calls, 1)
	require.Equal(t, "budget.xlsx", calls[0].templateName)
	require.True(t, calls[0].isMerged)
	require.Equal(t, map[string]string{"north.xlsx": "n", "south.xlsx": "s"}, calls[0].files)
	require.True(t, files.has(api.KindConsolidation, "Consolidated-budget.xlsx"))
}

func TestPlainErrorsAreShown(t *testing.T) {
	s, _, files := mountedServer(t)
	files.listErr = errors.New("dial tcp: connection refused")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/consolidations", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

func TestFlashMessagesRendered(t *testing.T) {
	s, _, _ := mountedServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/templates?msg=Saved&error=Oops", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `<div class="flash success">Saved</div>`)
	require.Contains(t, rec.Body.String(), `<div class="flash error">Oops</div>`)
}
