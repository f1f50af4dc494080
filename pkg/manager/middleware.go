package manager

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/sessiond/pkg/domain"
)

type contextKey struct{}

// FromContext returns the session record attached by Middleware, if any.
func FromContext(ctx context.Context) (*domain.Record, bool) {
	record, ok := ctx.Value(contextKey{}).(*domain.Record)
	return record, ok
}

// Middleware returns the session handler for the request layer. For each
// request it reads the configured cookie, loads the record, refreshes its
// last-access time, and injects it into the request context.
//
// Store failures and missing records both mean "no session": the request
// proceeds unauthenticated, never fails. The request layer decides what an
// absent session implies.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(m.cfg.Cookie.Name)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			record, err := m.Get(r.Context(), cookie.Value)
			if err != nil {
				if err != domain.ErrSessionNotFound {
					m.logger.Warn("session lookup failed, treating as no session", "err", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			if err := m.Touch(r.Context(), record); err != nil {
				m.logger.Warn("failed to touch session", "session_id", record.SessionID, "err", err)
			}

			ctx := context.WithValue(r.Context(), contextKey{}, record)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IssueSession creates, admits and persists a new session for userID and
// sets the session cookie. Used by the login path after authentication
// produced a user id.
func (m *Manager) IssueSession(ctx context.Context, w http.ResponseWriter, userID string) (*domain.Record, error) {
	id, err := domain.NewSessionID()
	if err != nil {
		return nil, err
	}

	record := domain.NewRecord(id, userID, m.clock())
	if err := m.Admit(ctx, record); err != nil {
		return nil, err
	}

	m.setCookie(w, id, m.clock().Add(m.cfg.MaxAge))
	return record, nil
}

// RevokeSession deletes the session and clears the cookie. Used by logout.
func (m *Manager) RevokeSession(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	if err := m.Delete(ctx, sessionID); err != nil {
		return err
	}
	m.clearCookie(w)
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, sessionID string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.Cookie.Name,
		Value:    sessionID,
		Path:     "/",
		Expires:  expires,
		HttpOnly: m.cfg.Cookie.HTTPOnly,
		Secure:   m.cfg.Cookie.Secure,
		SameSite: sameSite(m.cfg.Cookie.SameSite),
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.Cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: m.cfg.Cookie.HTTPOnly,
		Secure:   m.cfg.Cookie.Secure,
		SameSite: sameSite(m.cfg.Cookie.SameSite),
	})
}

func sameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
