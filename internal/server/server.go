package server

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/config"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/audit"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	identitycommands "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/commands"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	identityqueries "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/queries"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/realtime"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	sessioncommands "github.com/eskrenkovic/dodo-exchange/internal/modules/session/commands"
	sessiondomain "github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"
	sessionqueries "github.com/eskrenkovic/dodo-exchange/internal/modules/session/queries"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/settings"

	"github.com/eskrenkovic/mediator-go"
	"github.com/eskrenkovic/migrate-go"
	"github.com/go-chi/chi"
	_ "github.com/lib/pq"
)

type Server interface {
	Start() error
	Stop() error
}

var _ Server = &HTTPServer{}

// HTTPServer acts as the composition root for the application.
type HTTPServer struct {
	server *http.Server
	tokens *auth.TokenService
}

func NewHTTPServer(config config.Config) (Server, error) {
	baseCtx := context.Background()
	logger := config.Logger

	db, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := migrate.Run(baseCtx, db, config.MigrationsPath); err != nil {
		return nil, err
	}

	requestLoggingBehavior := core.RequestLoggingBehavior{Logger: logger}
	handlerErrorLoggingBehavior := core.HandlerErrorLoggingBehavior{Logger: logger}
	requestValidationBehavior := core.RequestValidationBehavior{}

	mediator.RegisterPipelineBehavior(&requestLoggingBehavior)
	mediator.RegisterPipelineBehavior(&handlerErrorLoggingBehavior)
	mediator.RegisterPipelineBehavior(&requestValidationBehavior)

	// collaborators

	users := identity.NewPostgresUserRepository(db)
	sessions := session.NewPostgresSessionRepository(db)

	settingsStore := settings.NewDefaultStore(config.MaxSessionDurationHours, config.DodoUniquenessCheckEnabled)
	sessionService := session.NewService(sessions, settingsStore)

	tokens := auth.NewTokenService(config.JWTSigningKey, config.LoginSessionDuration, config.LoginSessionGCInterval)
	passwordHasher := identitydomain.NewSHA256PasswordHasher()
	auditSink := audit.NewPostgresSink(db)

	hub := realtime.NewHub(logger)
	notifier := realtime.NewHubNotifier(hub, sessions, users, logger)
	wsEndpoint := realtime.NewEndpoint(hub, sessionService, logger)
	settingsEndpoint := settings.NewEndpoint(settingsStore)

	// handler registration

	// identity

	registerHandler := identitycommands.NewRegisterCommandHandler(users, passwordHasher)
	err = mediator.RegisterRequestHandler[identitycommands.RegisterCommand, identitycommands.RegisterResponse](
		registerHandler,
	)
	if err != nil {
		return nil, err
	}

	loginHandler := identitycommands.NewLoginCommandHandler(users, passwordHasher, tokens)
	err = mediator.RegisterRequestHandler[identitycommands.LoginCommand, identitycommands.LoginResponse](
		loginHandler,
	)
	if err != nil {
		return nil, err
	}

	logoutHandler := identitycommands.NewLogoutCommandHandler(tokens)
	err = mediator.RegisterRequestHandler[identitycommands.LogoutCommand, core.Unit](
		logoutHandler,
	)
	if err != nil {
		return nil, err
	}

	updateUserSettingsHandler := identitycommands.NewUpdateUserSettingsCommandHandler(users, passwordHasher)
	err = mediator.RegisterRequestHandler[identitycommands.UpdateUserSettingsCommand, core.Unit](
		updateUserSettingsHandler,
	)
	if err != nil {
		return nil, err
	}

	getUserHandler := identityqueries.NewGetUserQueryHandler(users)
	err = mediator.RegisterRequestHandler[identityqueries.GetUserQuery, identitydomain.UserView](
		getUserHandler,
	)
	if err != nil {
		return nil, err
	}

	getUsersHandler := identityqueries.NewGetUsersQueryHandler(users)
	err = mediator.RegisterRequestHandler[identityqueries.GetUsersQuery, []identitydomain.UserView](
		getUsersHandler,
	)
	if err != nil {
		return nil, err
	}

	usernameTakenHandler := identityqueries.NewUsernameTakenQueryHandler(users)
	err = mediator.RegisterRequestHandler[identityqueries.UsernameTakenQuery, identityqueries.UsernameTakenResponse](
		usernameTakenHandler,
	)
	if err != nil {
		return nil, err
	}

	// session

	createSessionHandler := sessioncommands.NewCreateSessionCommandHandler(sessions, sessionService)
	err = mediator.RegisterRequestHandler[sessioncommands.CreateSessionCommand, sessioncommands.CreateSessionResponse](
		createSessionHandler,
	)
	if err != nil {
		return nil, err
	}

	updateSessionSettingsHandler := sessioncommands.NewUpdateSessionSettingsCommandHandler(
		sessions,
		sessionService,
		notifier,
		auditSink,
	)
	err = mediator.RegisterRequestHandler[sessioncommands.UpdateSessionSettingsCommand, core.Unit](
		updateSessionSettingsHandler,
	)
	if err != nil {
		return nil, err
	}

	requestAccessHandler := sessioncommands.NewRequestAccessCommandHandler(sessions, users, sessionService, notifier)
	err = mediator.RegisterRequestHandler[sessioncommands.RequestAccessCommand, sessioncommands.RequestAccessResponse](
		requestAccessHandler,
	)
	if err != nil {
		return nil, err
	}

	updateRequesterStatusHandler := sessioncommands.NewUpdateRequesterStatusCommandHandler(
		sessions,
		users,
		sessionService,
		notifier,
	)
	err = mediator.RegisterRequestHandler[sessioncommands.UpdateRequesterStatusCommand, core.Unit](
		updateRequesterStatusHandler,
	)
	if err != nil {
		return nil, err
	}

	retrieveCodeHandler := sessioncommands.NewRetrieveCodeCommandHandler(
		sessions,
		users,
		sessionService,
		notifier,
		auditSink,
	)
	err = mediator.RegisterRequestHandler[sessioncommands.RetrieveCodeCommand, sessioncommands.RetrieveCodeResponse](
		retrieveCodeHandler,
	)
	if err != nil {
		return nil, err
	}

	getSessionHandler := sessionqueries.NewGetSessionQueryHandler(sessions, users, sessionService)
	err = mediator.RegisterRequestHandler[sessionqueries.GetSessionQuery, sessiondomain.SessionView](
		getSessionHandler,
	)
	if err != nil {
		return nil, err
	}

	getSessionsHandler := sessionqueries.NewGetSessionsQueryHandler(sessions, users, sessionService)
	err = mediator.RegisterRequestHandler[sessionqueries.GetSessionsQuery, []sessiondomain.SessionView](
		getSessionsHandler,
	)
	if err != nil {
		return nil, err
	}

	getOwnSessionHandler := sessionqueries.NewGetOwnSessionQueryHandler(sessions, users, sessionService)
	err = mediator.RegisterRequestHandler[sessionqueries.GetOwnSessionQuery, sessiondomain.SessionView](
		getOwnSessionHandler,
	)
	if err != nil {
		return nil, err
	}

	getSessionRequestersHandler := sessionqueries.NewGetSessionRequestersQueryHandler(sessions, users, sessionService)
	err = mediator.RegisterRequestHandler[sessionqueries.GetSessionRequestersQuery, []sessiondomain.RequesterView](
		getSessionRequestersHandler,
	)
	if err != nil {
		return nil, err
	}

	dodoInUseHandler := sessionqueries.NewDodoInUseQueryHandler(sessionService)
	err = mediator.RegisterRequestHandler[sessionqueries.DodoInUseQuery, sessionqueries.DodoInUseResponse](
		dodoInUseHandler,
	)
	if err != nil {
		return nil, err
	}

	// http

	authenticated := auth.AuthenticationMiddleware(tokens, users)
	optionalAuth := auth.OptionalAuthenticationMiddleware(tokens, users)
	adminOnly := auth.RequireLevelMiddleware(identitydomain.LevelAdmin)

	r := router{
		mux: chi.NewRouter(),
		middleware: []httpMiddleware{
			baseContextMiddleware(baseCtx),
			core.CorrelationIDHTTPMiddleware,
			core.LoggerHTTPMiddleware(logger),
		},
	}

	r.register("POST", "/api/auth/register", identitycommands.HandleRegister)
	r.register("POST", "/api/auth/login", identitycommands.HandleLogin)
	r.register("POST", "/api/auth/logout", identitycommands.HandleLogout, authenticated)

	r.register("GET", "/api/users", identityqueries.HandleGetUsers, authenticated)
	r.register("GET", "/api/users/self", identityqueries.HandleGetSelf, authenticated)
	r.register("GET", "/api/users/{id}", identityqueries.HandleGetUser, optionalAuth)
	r.register("PUT", "/api/users/{id}/settings", identitycommands.HandleUpdateUserSettings, authenticated)
	r.register("GET", "/api/username-taken", identityqueries.HandleUsernameTaken)

	r.register("GET", "/api/sessions", sessionqueries.HandleGetSessions, optionalAuth)
	r.register("POST", "/api/sessions", sessioncommands.HandleCreateSession, authenticated)
	r.register("GET", "/api/sessions/self", sessionqueries.HandleGetOwnSession, authenticated)
	r.register("GET", "/api/sessions/{id}", sessionqueries.HandleGetSession, optionalAuth)
	r.register("PUT", "/api/sessions/{id}/settings", sessioncommands.HandleUpdateSessionSettings, authenticated)
	r.register("GET", "/api/sessions/{id}/requesters", sessionqueries.HandleGetSessionRequesters, optionalAuth)
	r.register("POST", "/api/sessions/{id}/requesters", sessioncommands.HandleRequestAccess, authenticated)
	r.register(
		"PUT",
		"/api/sessions/{id}/requesters/{userID}",
		sessioncommands.HandleUpdateRequesterStatus,
		authenticated,
	)
	r.register("GET", "/api/sessions/{id}/dodo", sessioncommands.HandleRetrieveCode, authenticated)
	r.register("GET", "/api/dodo-in-use", sessionqueries.HandleDodoInUse)

	// Both runtime settings are public knowledge; only changing them is
	// privileged.
	r.register("GET", "/api/settings", settingsEndpoint.HandleGetSettings)
	r.register("PUT", "/api/admin/settings", settingsEndpoint.HandleUpdateSetting, authenticated, adminOnly)

	r.register("GET", "/ws", wsEndpoint.HandleConnection, optionalAuth)

	server := http.Server{
		Addr:    net.JoinHostPort("", fmt.Sprintf("%d", config.Port)),
		Handler: r.mux,
	}

	return &HTTPServer{server: &server, tokens: tokens}, nil
}

func (s *HTTPServer) Start() error {
	return s.server.ListenAndServe()
}

func (s *HTTPServer) Stop() error {
	s.tokens.Stop()
	return s.server.Close()
}

type httpMiddleware func(http.HandlerFunc) http.HandlerFunc

type router struct {
	mux        *chi.Mux
	middleware []httpMiddleware
}

func (r *router) register(method, pattern string, handler http.HandlerFunc, middleware ...httpMiddleware) {
	h := handler

	allMiddleware := append(r.middleware, middleware...)

	for i := len(allMiddleware) - 1; i >= 0; i-- {
		h = allMiddleware[i](h)
	}

	r.mux.Method(method, pattern, h)
}

func baseContextMiddleware(baseCtx context.Context) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestCtx := baseCtx

			if v, ok := ctx.Value(http.ServerContextKey).(*http.Server); ok {
				requestCtx = context.WithValue(requestCtx, http.ServerContextKey, v)
			}

			if v, ok := ctx.Value(http.LocalAddrContextKey).(net.Addr); ok {
				requestCtx = context.WithValue(requestCtx, http.LocalAddrContextKey, v)
			}

			// chi stores the matched route parameters on the request
			// context before the handler chain runs.
			if v, ok := ctx.Value(chi.RouteCtxKey).(*chi.Context); ok {
				requestCtx = context.WithValue(requestCtx, chi.RouteCtxKey, v)
			}

			next.ServeHTTP(w, r.WithContext(requestCtx))
		}
	}
}
