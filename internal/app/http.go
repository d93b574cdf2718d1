package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/adambraimbridge/webchat/pkg/api"
	"github.com/adambraimbridge/webchat/pkg/auth"
	"github.com/adambraimbridge/webchat/pkg/banner"
	"github.com/adambraimbridge/webchat/pkg/eventlog"
	"github.com/adambraimbridge/webchat/pkg/telemetry"
	"github.com/adambraimbridge/webchat/pkg/utils"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// buildRouter assembles the full route table.
func (a *App) buildRouter() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	v1 := r.PathPrefix("/v1").Subrouter()
	api.RegisterSessions(v1, api.Deps{
		Hub:            a.hub,
		Widget:         a.eff.Config.Widget,
		MaxBodyBytes:   a.eff.Config.Server.MaxBodyBytes.Int64(),
		AllowedOrigins: a.eff.Config.Security.CORS.AllowedOrigins,
	})
	return r
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !eventlog.Ready() {
		utils.JSONWrite(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok", "version": ver})
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startHTTP builds the handler, starts the HTTP server in a goroutine and
// returns a channel that will receive any server error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	secCfg := auth.SecConfig{
		AllowedOrigins:  append([]string{}, a.eff.Config.Security.CORS.AllowedOrigins...),
		RPS:             a.eff.Config.Security.RateLimit.RPS,
		Burst:           a.eff.Config.Security.RateLimit.Burst,
		IPWhitelist:     append([]string{}, a.eff.Config.Security.IPWhitelist...),
		ParticipantKeys: map[string]struct{}{},
		EditorKeys:      map[string]struct{}{},
	}
	for _, k := range a.eff.Config.Security.APIKeys.Participant {
		secCfg.ParticipantKeys[k] = struct{}{}
	}
	for _, k := range a.eff.Config.Security.APIKeys.Editor {
		secCfg.EditorKeys[k] = struct{}{}
	}

	// telemetry wraps the gateway, the gateway wraps author resolution
	wrapped := auth.RequireSignedAuthor(a.buildRouter())
	wrapped = auth.AuthenticateRequestMiddleware(secCfg)(wrapped)
	wrapped = telemetry.Middleware(wrapped)

	a.srv = &http.Server{Addr: a.eff.Addr, Handler: wrapped}

	errCh := make(chan error, 1)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}

func (a *App) stopHTTP() {
	if a.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.srv.Shutdown(ctx)
}
