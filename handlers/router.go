package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/middleware"
	"go_trial/ordertaking/middleware/logkafka"
	"go_trial/ordertaking/models"
)

type RouterOptions struct {
	LogSink         logkafka.Sink
	Env             string
	LoginRatePerSec float64
	LoginBurst      int
}

// NewRouter builds the full route table. CORS is applied outside the router so preflight
// requests are answered before method matching.
func NewRouter(api *API, opts RouterOptions) *mux.Router {
	Init()
	log := api.Log
	if log == nil {
		log = logger.Discard()
		api.Log = log
	}
	if opts.LogSink == nil {
		opts.LogSink = logkafka.ConsoleSink{Log: log}
	}
	if opts.LoginRatePerSec <= 0 {
		opts.LoginRatePerSec = 5
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 10
	}

	authn := &middleware.Authenticator{Issuer: api.Issuer, Sessions: api.Sessions, Log: log}
	adminOnly := middleware.RequireRole(models.RoleAdmin, log)
	admin := func(name string, h http.HandlerFunc) http.Handler {
		return adminOnly(instrument(name, h))
	}

	mainRouter := mux.NewRouter()
	mainRouter.Use(middleware.Recovery(log), logkafka.LoggingMiddleware(opts.LogSink, opts.Env))

	mainRouter.HandleFunc("/health", api.Health).Methods(http.MethodGet)
	mainRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// token routes need no session
	limiter := middleware.NewRateLimit(opts.LoginRatePerSec, opts.LoginBurst, log)
	tokenRouter := mainRouter.PathPrefix("/token").Subrouter()
	tokenRouter.Use(middleware.RequireJSON)
	tokenRouter.Handle("/login/", limiter.Middleware(instrument("login", api.LoginTokenHandler))).Methods(http.MethodPost)
	tokenRouter.HandleFunc("/refresh/", instrument("refresh", api.RefreshTokenHandler)).Methods(http.MethodPost)
	tokenRouter.Handle("/logout/", authn.SetCurrentUser(instrument("logout", api.LogoutUserHandler))).Methods(http.MethodPost)

	apiRouter := mainRouter.PathPrefix("/api").Subrouter()
	apiRouter.Use(authn.SetCurrentUser, middleware.RequireJSON)

	apiRouter.HandleFunc("/menu-items", instrument("menu_items_list", api.GetMenuItems)).Methods(http.MethodGet)
	apiRouter.Handle("/menu-items", admin("menu_items_create", api.PostMenuItem)).Methods(http.MethodPost)
	apiRouter.Handle("/menu-items/{id}", admin("menu_items_update", api.PutMenuItem)).Methods(http.MethodPut)
	apiRouter.Handle("/menu-items/{id}", admin("menu_items_delete", api.DeleteMenuItem)).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/menu-prices", instrument("menu_prices_list", api.GetMenuPrices)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/menu-prices/{id}", instrument("menu_prices_get", api.GetMenuPrice)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/menu-prices/{id}", instrument("menu_prices_update", api.PutMenuPrice)).Methods(http.MethodPut)

	apiRouter.HandleFunc("/orders", instrument("orders_create", api.PostOrder)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/orders", instrument("orders_list", api.GetOrders)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/orders", instrument("orders_delete", api.DeleteOrder)).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/orders/status", instrument("orders_status", api.PatchOrderStatus)).Methods(http.MethodPatch)

	apiRouter.HandleFunc("/users/me/", instrument("users_me", api.GetCurrentUserHandler)).Methods(http.MethodGet)
	apiRouter.Handle("/users", admin("users_list", api.GetUsers)).Methods(http.MethodGet)
	apiRouter.Handle("/users", admin("users_create", api.CreateUserHandler)).Methods(http.MethodPost)
	apiRouter.Handle("/users/{id}", admin("users_delete", api.DeleteUserHandler)).Methods(http.MethodDelete)

	pages := authn.DashboardGate(http.HandlerFunc(api.Dashboard))
	mainRouter.Handle("/", pages).Methods(http.MethodGet)
	mainRouter.Handle("/login", pages).Methods(http.MethodGet)
	mainRouter.PathPrefix("/admin-dashboard").Handler(pages).Methods(http.MethodGet)
	mainRouter.PathPrefix("/user-dashboard").Handler(pages).Methods(http.MethodGet)

	mainRouter.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	mainRouter.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return mainRouter
}
