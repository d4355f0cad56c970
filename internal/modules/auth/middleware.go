package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
)

type authContextKey string

const userContextKey authContextKey = "user"

// UserFrom returns the authenticated user attached by the middleware.
func UserFrom(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(domain.User)
	return user, ok
}

// BearerToken pulls the login token out of a request. The Authorization
// header wins, the query parameter exists for websocket clients that cannot
// set headers.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return r.URL.Query().Get("token")
}

// AuthenticationMiddleware rejects requests without a live login session and
// attaches the resolved user to the request context.
func AuthenticationMiddleware(
	tokens *TokenService,
	users identity.UserRepository,
) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(w, r, tokens, users)
			if !ok {
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), user)))
		}
	}
}

// OptionalAuthenticationMiddleware attaches the user when a valid token is
// present and lets anonymous requests through untouched.
func OptionalAuthenticationMiddleware(
	tokens *TokenService,
	users identity.UserRepository,
) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if BearerToken(r) == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, ok := resolveUser(w, r, tokens, users)
			if !ok {
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), user)))
		}
	}
}

// RequireLevelMiddleware gates an endpoint behind a minimum user level. It
// assumes AuthenticationMiddleware already ran.
func RequireLevelMiddleware(level domain.Level) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFrom(r.Context())
			if !ok || user.Level < level {
				core.WriteResponse(w, r, 403, nil)
				return
			}

			next.ServeHTTP(w, r)
		}
	}
}

func resolveUser(
	w http.ResponseWriter,
	r *http.Request,
	tokens *TokenService,
	users identity.UserRepository,
) (domain.User, bool) {
	token := BearerToken(r)
	if token == "" {
		core.WriteUnauthorized(w, r, nil)
		return domain.User{}, false
	}

	userID, err := tokens.Verify(token)
	if err != nil {
		core.WriteUnauthorized(w, r, nil)
		return domain.User{}, false
	}

	user, found, err := users.FindByID(r.Context(), userID)
	switch {
	case err != nil:
		core.WriteInternalServerError(w, r, nil)
		return domain.User{}, false
	case !found:
		core.WriteUnauthorized(w, r, nil)
		return domain.User{}, false
	case user.Banned && user.Level < domain.LevelAdmin:
		core.WriteResponse(w, r, 403, nil)
		return domain.User{}, false
	}

	return user, true
}

func contextWithUser(ctx context.Context, user domain.User) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, core.SessionContextKey, core.ContextSession{UserID: user.ID})
}
