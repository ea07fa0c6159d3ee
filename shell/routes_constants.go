package shell

// Route path constants
const (
	RouteHome           = "/"
	RouteTemplates      = "/templates"
	RouteConsolidations = "/consolidations"

	// Sub routes appended to a view's base path
	routeUpload   = "/upload"
	routeDelete   = "/delete/{name}"
	routeDownload = "/download/{name}"

	RouteHealth = "/healthz"
	RouteStatic = "/static/{file}"
)
