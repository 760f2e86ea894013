package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/quote-compare/internal/auth"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/session"
)

const (
	headerRequestID = "X-Request-ID"
	ctxKeySession   = "session"
)

// RequestID propagates or assigns X-Request-ID and stores it on the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"bytes", c.Writer.Size(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"req_id", common.RequestIDFromContext(c.Request.Context()),
		}
		if sid := common.SessionIDFromContext(c.Request.Context()); sid != "" {
			attrs = append(attrs, "session_id", sid)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		switch {
		case status >= 500:
			logger.Error("http.request", attrs...)
		case status >= 400:
			logger.Warn("http.request", attrs...)
		default:
			logger.Info("http.request", attrs...)
		}
	}
}

// RequireAuth resolves the session cookie (or a Bearer token) to a live session.
func RequireAuth(a *auth.Authenticator, store *session.Store, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(a.CookieName())
		}
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "ログインしてください", nil)
			return
		}
		claims, err := a.Tokens.Parse(token)
		if err != nil {
			logger.Debug("auth.token.rejected", "error", err)
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "セッションが無効です。再度ログインしてください", err)
			return
		}
		st, ok := store.Get(claims.SessionID)
		if !ok || st.Username != claims.Subject {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "セッションが見つかりません。再度ログインしてください", nil)
			return
		}
		c.Set(ctxKeySession, st)
		c.Request = c.Request.WithContext(common.WithSessionID(c.Request.Context(), st.ID))
		c.Next()
	}
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// currentSession returns the session set by RequireAuth.
func currentSession(c *gin.Context) *session.State {
	v, _ := c.Get(ctxKeySession)
	st, _ := v.(*session.State)
	return st
}
