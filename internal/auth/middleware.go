package auth

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/barberia/backoffice/internal/platform/httpx"
	"github.com/barberia/backoffice/internal/shared"
)

type committingWriter struct {
	http.ResponseWriter
	ctx           context.Context
	sess          *shared.Session
	manager       *shared.SessionManager
	logger        *slog.Logger
	headerWritten bool
}

func (w *committingWriter) WriteHeader(status int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
			w.logger.Error("failed to commit session", slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *committingWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// Sessions loads the session for every request and commits it before the
// response headers go out.
func Sessions(manager *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := manager.Load(ctx, r)
			if err != nil {
				logger.Error("failed to load session", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)
			wrapped := &committingWriter{ResponseWriter: w, ctx: ctx, sess: sess, manager: manager, logger: logger}
			next.ServeHTTP(wrapped, r.WithContext(ctx))
			if !wrapped.headerWritten {
				wrapped.WriteHeader(http.StatusOK)
			}
		})
	}
}

// RequireStaff rejects requests without a staff session and exposes the
// acting user to downstream audit writers.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess.UserID() == 0 {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		if !sess.IsStaff() {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		ctx := shared.ContextWithActor(r.Context(), shared.Actor{
			UserID:   sess.UserID(),
			Username: sess.Username(),
			IP:       clientIP(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
