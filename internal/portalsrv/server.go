// Package portalsrv is the portal dev server: a fixture-backed stand-in for
// the production portal API, used for local development and CLI testing. It
// serves the authentication and sample-plan endpoints the client speaks,
// including the legacy response shapes of the plan-list endpoint.
package portalsrv

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/qualtrack/qualtrack/internal/common/httpx"
	"github.com/qualtrack/qualtrack/internal/common/middleware"
	"github.com/qualtrack/qualtrack/internal/common/version"
	"github.com/qualtrack/qualtrack/internal/portalsrv/config"
	"github.com/qualtrack/qualtrack/internal/portalsrv/store"
)

// PortalServer is the dev server. Create with CreateNewServer, then call
// MountHandlers before serving.
type PortalServer struct {
	Router *chi.Mux
	store  *store.Store
}

// CreateNewServer builds a server over the fixtures named in the loaded
// configuration.
func CreateNewServer() (*PortalServer, error) {
	st, err := store.Load(config.Config().FixtureDir)
	if err != nil {
		return nil, err
	}
	return &PortalServer{
		Router: chi.NewRouter(),
		store:  st,
	}, nil
}

// MountHandlers installs the middleware chain and all routes.
func (s *PortalServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	s.Router.Use(middleware.SetTimeout(config.Config().GetRequestTimeout()))
	if config.Config().HandleCORS {
		origins := config.Config().AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.Router.Post("/user/login", s.login)

	s.Router.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/user/changerole", s.changeRole)
		r.Post("/user/resetpassword", s.resetPassword)
		r.Route("/sampleplan", func(r chi.Router) {
			r.Get("/", s.listPlans)
			r.Get("/{planID}/learners", s.getLearners)
			r.Post("/apply", s.applySamples)
			r.Post("/detail", s.saveDetail)
		})
	})

	s.Router.Get("/version", s.getVersion)
	s.Router.Get("/ready", s.getReadiness)
}

type getVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *PortalServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	httpx.SendSuccess(r.Context(), w, http.StatusOK, "", &getVersionRsp{
		ServerVersion: version.Version,
		ApiVersion:    version.APIVersion,
	})
}

func (s *PortalServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	httpx.SendSuccess(r.Context(), w, http.StatusOK, "", map[string]string{
		"status": "ready",
	})
}
