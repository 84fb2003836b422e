package auth

import (
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"context"
	"net/http"
	"strings"
)

type contextKey string

const authorKey contextKey = "author"

// accessTokenParam carries the token on websocket upgrades, where browsers cannot set headers.
const accessTokenParam = "access_token"

// Middleware validates the bearer token of every request and injects the
// caller into the request context.
func Middleware(signer Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				http.Error(w, errors.ErrUnauthenticated.Error(), errors.HTTPStatus(errors.ErrUnauthenticated))
				return
			}
			claims, err := signer.ValidateToken(tokenStr)
			if err != nil {
				http.Error(w, errors.ErrInvalidToken.Error(), errors.HTTPStatus(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthor(r.Context(), claims.Author())))
		})
	}
}

func WithAuthor(ctx context.Context, author chat.Author) context.Context {
	return context.WithValue(ctx, authorKey, author)
}

func AuthorFromContext(ctx context.Context) (chat.Author, bool) {
	author, ok := ctx.Value(authorKey).(chat.Author)
	return author, ok && author.ID != ""
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get(accessTokenParam)
}
