package shell

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/xlsx-validator-shell/api"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"github.com/jrsteele09/xlsx-validator-shell/session"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"

	maxUploadSize = 32 << 20
)

type pageData struct {
	AppName    string
	Title      string
	Active     string
	User       string
	ValidFor   int64
	APIBaseURL string
	Files      []string
	Templates  []string
	Message    string
	Error      string
}

func newPageData(props *ViewProps, title, active string, r *http.Request) pageData {
	snap := props.Session.Snapshot()
	user := snap.Username
	if user == "" {
		user = snap.Subject
	}
	return pageData{
		AppName:    props.AppName,
		Title:      title,
		Active:     active,
		User:       user,
		ValidFor:   session.RoundSeconds(props.Session.ValidFor()),
		APIBaseURL: props.APIBaseURL,
		Message:    r.URL.Query().Get("msg"),
		Error:      r.URL.Query().Get("error"),
	}
}

func mustParse(name string) *template.Template {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}
	return tmpl
}

func render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, status int, data pageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Ctx(r.Context()).Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
	}
}

// HomeView shows the signed-in user and the session state.
type HomeView struct{}

func (HomeView) Title() string { return "Home" }

func (v HomeView) Routes(base string, props *ViewProps) []Route {
	tmpl := mustParse("home.html")
	return []Route{{
		Method:  http.MethodGet,
		Pattern: pattern(base, ""),
		Handler: func(w http.ResponseWriter, r *http.Request) {
			render(w, r, tmpl, http.StatusOK, newPageData(props, v.Title(), base, r))
		},
	}}
}

// TemplatesView manages the template workbooks.
type TemplatesView struct{}

func (TemplatesView) Title() string { return "Templates" }

func (v TemplatesView) Routes(base string, props *ViewProps) []Route {
	tmpl := mustParse("templates.html")
	return append(fileRoutes(base, props, api.KindTemplate), Route{
		Method:  http.MethodGet,
		Pattern: pattern(base, ""),
		Handler: func(w http.ResponseWriter, r *http.Request) {
			data := newPageData(props, v.Title(), base, r)
			files, err := props.API.List(r.Context(), api.KindTemplate)
			if err != nil {
				log.Ctx(r.Context()).Err(err).Msg("Failed to list templates")
				data.Error = errorMessage(err)
				render(w, r, tmpl, http.StatusBadGateway, data)
				return
			}
			data.Files = files
			render(w, r, tmpl, http.StatusOK, data)
		},
	}, Route{
		Method:  http.MethodPost,
		Pattern: pattern(base, routeUpload),
		Handler: func(w http.ResponseWriter, r *http.Request) {
			files, cleanup, err := uploadedFiles(r)
			if err != nil {
				redirectWithError(w, r, base, errorMessage(err))
				return
			}
			defer cleanup()
			msg, err := props.API.UploadTemplates(r.Context(), files)
			if err != nil {
				log.Ctx(r.Context()).Err(err).Msg("Failed to upload templates")
				redirectWithError(w, r, base, errorMessage(err))
				return
			}
			redirectSuccess(w, r, base, fmt.Sprintf("Uploaded %d template(s) %s", len(files), msg))
		},
	})
}

// ConsolidationsView merges uploaded workbooks into per-template reports.
type ConsolidationsView struct{}

func (ConsolidationsView) Title() string { return "Consolidations" }

func (v ConsolidationsView) Routes(base string, props *ViewProps) []Route {
	tmpl := mustParse("consolidations.html")
	return append(fileRoutes(base, props, api.KindConsolidation), Route{
		Method:  http.MethodGet,
		Pattern: pattern(base, ""),
		Handler: func(w http.ResponseWriter, r *http.Request) {
			data := newPageData(props, v.Title(), base, r)
			files, err := props.API.List(r.Context(), api.KindConsolidation)
			if err == nil {
				data.Templates, err = props.API.List(r.Context(), api.KindTemplate)
			}
			if err != nil {
				log.Ctx(r.Context()).Err(err).Msg("Failed to list consolidations")
				data.Error = errorMessage(err)
				render(w, r, tmpl, http.StatusBadGateway, data)
				return
			}
			data.Files = files
			render(w, r, tmpl, http.StatusOK, data)
		},
	}, Route{
		Method:  http.MethodPost,
		Pattern: pattern(base, routeUpload),
		Handler: func(w http.ResponseWriter, r *http.Request) {
			files, cleanup, err := uploadedFiles(r)
			if err != nil {
				redirectWithError(w, r, base, errorMessage(err))
				return
			}
			defer cleanup()
			templateName := r.FormValue("templateName")
			isMerged, _ := strconv.ParseBool(r.FormValue("isMerged"))
			msg, err := props.API.Consolidate(r.Context(), templateName, isMerged, files)
			if err != nil {
				log.Ctx(r.Context()).Err(err).Str("template", templateName).Msg("Failed to consolidate")
				redirectWithError(w, r, base, errorMessage(err))
				return
			}
			redirectSuccess(w, r, base, msg)
		},
	})
}

// fileRoutes are the download and delete actions shared by file views.
func fileRoutes(base string, props *ViewProps, kind api.Kind) []Route {
	return []Route{{
		Method:  http.MethodGet,
		Pattern: pattern(base, routeDownload),
		Handler: func(w http.ResponseWriter, r *http.Request) {
			name := r.PathValue("name")
			rc, err := props.API.Download(r.Context(), kind, name)
			if err != nil {
				log.Ctx(r.Context()).Err(err).Str("file", name).Msg("Failed to download")
				redirectWithError(w, r, base, errorMessage(err))
				return
			}
			defer rc.Close()
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
			if _, err := io.Copy(w, rc); err != nil {
				log.Ctx(r.Context()).Err(err).Str("file", name).Msg("Download interrupted")
			}
		},
	}, {
		Method:  http.MethodPost,
		Pattern: pattern(base, routeDelete),
		Handler: func(w http.ResponseWriter, r *http.Request) {
			name := r.PathValue("name")
			msg, err := props.API.Delete(r.Context(), kind, name)
			if err != nil {
				log.Ctx(r.Context()).Err(err).Str("file", name).Msg("Failed to delete")
				redirectWithError(w, r, base, errorMessage(err))
				return
			}
			redirectSuccess(w, r, base, msg)
		},
	}}
}

// uploadedFiles opens every "file" part of a multipart form.
func uploadedFiles(r *http.Request) ([]api.File, func(), error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, func() {}, fmt.Errorf("invalid upload: %w", err)
	}
	var (
		files   []api.File
		closers []multipart.File
	)
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}
	for _, fh := range r.MultipartForm.File["file"] {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		closers = append(closers, f)
		files = append(files, api.File{Name: fh.Filename, Content: f})
	}
	if len(files) == 0 {
		cleanup()
		return nil, func() {}, errors.New("no form key 'file' was found")
	}
	return files, cleanup, nil
}

func errorMessage(err error) string {
	var apiErr *api.Error
	if apperrors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func redirectSuccess(w http.ResponseWriter, r *http.Request, path, msg string) {
	http.Redirect(w, r, path+"?msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(errorMsg), http.StatusSeeOther)
}
