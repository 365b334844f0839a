package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NewRouter returns the API router. main attaches /shutdown itself since it
// needs the server and its token.
func NewRouter(d Deps) *chi.Mux {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(RequestID, Recover(log), AccessLog(log), Cors)

	r.Get("/health", HealthHandler{}.Health)

	sh := SyncHandler{Sync: d.Sync, Log: log}
	rh := ReviewsHandler{Reviews: d.Reviews}
	ch := ConnectionHandler{Store: d.Store, CfgVal: d.CfgVal, Gateway: d.Gateway, Log: log}
	r.Route("/api/gmail", func(r chi.Router) {
		r.Post("/sync", sh.Run)
		r.Get("/status", sh.Status)

		r.Get("/connection", ch.Get)
		r.Put("/connection", ch.Put)
		r.Delete("/connection", ch.Delete)

		r.Get("/reviews", rh.List)
		r.Post("/reviews/{id}", rh.Act)
	})

	ah := ApplicationsHandler{Store: d.Store}
	r.Get("/api/applications", ah.List)
	r.Get("/api/applications/{id}", ah.Get)

	cfh := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg, OnConfig: d.OnConfig}
	r.Get("/config", cfh.Get)
	r.Put("/config", cfh.Put)
	r.Get("/config/path", cfh.Path)
	r.Get("/config/validate", cfh.Validate)

	r.Post("/api/secrets/imap", SecretsHandler{CfgVal: d.CfgVal}.SetIMAPPassword)

	r.Get("/events", EventsHandler{Hub: d.Hub}.ServeSSE)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	return r
}
