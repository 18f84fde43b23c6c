// Package handlers manages the different versions of the API.
package handlers

import (
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/minichain/minichain/app/services/node/handlers/v1/public"
	"github.com/minichain/minichain/business/web/mid"
	"github.com/minichain/minichain/foundation/blockchain/node"
	"github.com/minichain/minichain/foundation/events"
	"github.com/minichain/minichain/foundation/nameservice"
	"github.com/minichain/minichain/foundation/web"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	Node     *node.Node
	NS       *nameservice.NameService
	Evts     *events.Events
}

// PublicMux constructs a http.Handler with all application routes
// defined.
func PublicMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common
	// Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Cors("*"),
		mid.Panics(),
	)

	// Load the v1 routes.
	pbl := public.Handlers{
		Log:  cfg.Log,
		Node: cfg.Node,
		NS:   cfg.NS,
		Evts: cfg.Evts,
	}

	const version = "v1"

	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/blocks", pbl.BlocksList)
	app.Handle(http.MethodGet, version, "/blocks/:hash", pbl.BlockByHash)
	app.Handle(http.MethodGet, version, "/accounts", pbl.AccountsList)
	app.Handle(http.MethodGet, version, "/accounts/:account", pbl.AccountByID)
	app.Handle(http.MethodGet, version, "/mempool", pbl.MempoolList)
	app.Handle(http.MethodPost, version, "/tx", pbl.SubmitTransaction)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)

	return app
}
