package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/testaustime/testaustime-auth/internal/oauth"
	"github.com/testaustime/testaustime-auth/internal/session"
)

// LoginFlow runs the TestausID callback flow and returns a session token
type LoginFlow interface {
	Login(ctx context.Context, req oauth.LoginRequest) (string, error)
}

// HandleOAuthCallback processes GET /auth/callback?code=<code>. The session
// cookie is only set once every step of the flow has succeeded.
func HandleOAuthCallback(flow LoginFlow, issuer *session.Issuer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := flow.Login(r.Context(), oauth.LoginRequest{
			Code:       r.URL.Query().Get("code"),
			RemoteAddr: clientIP(r),
		})
		if err != nil {
			writeFlowError(w, logger, err)
			return
		}

		issuer.BuildResponse(w, r, token)
	}
}

// writeFlowError maps a flow error onto a generic response. Provider and
// storage details stay in the logs.
func writeFlowError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := oauth.KindOf(err)

	switch kind {
	case oauth.KindInvalidCode:
		writeError(w, http.StatusBadRequest, string(kind), "Invalid authorization code")
	case oauth.KindUpstream:
		writeError(w, http.StatusBadGateway, string(kind), "Identity provider is unavailable")
	case oauth.KindStorage:
		writeError(w, http.StatusInternalServerError, string(kind), "Failed to resolve account")
	default:
		logger.Error("OAuth: Unclassified callback error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Login failed")
	}
}
