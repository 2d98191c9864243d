package apiserver

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/djarekg/tampa-taffy/internal/store"
	"github.com/djarekg/tampa-taffy/pkg/api"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.Ping(r.Context()); err != nil {
		return newHTTPError(http.StatusServiceUnavailable, "Database unavailable")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) error {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, users)
	return nil
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if id == "" {
		return newHTTPError(http.StatusBadRequest, "User ID is required")
	}
	u, err := s.store.GetUser(r.Context(), id)
	if stderrors.Is(err, store.ErrNotFound) {
		return newHTTPError(http.StatusNotFound, "User not found").withData(map[string]string{"id": id})
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, u)
	return nil
}

func (s *Server) setUserActive(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	if body.IsActive == nil {
		return newHTTPError(http.StatusBadRequest, "Missing body field: isActive")
	}
	id := chi.URLParam(r, "id")
	u, err := s.store.SetActive(r.Context(), id, *body.IsActive)
	if stderrors.Is(err, store.ErrNotFound) {
		return newHTTPError(http.StatusNotFound, "User not found").withData(map[string]string{"id": id})
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, u)
	return nil
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) error {
	query := strings.TrimSpace(chi.URLParam(r, "query"))
	if query == "" {
		return newHTTPError(http.StatusBadRequest, "Missing route param: query")
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return newHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	results, err := s.store.SearchUsers(r.Context(), query, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, results)
	return nil
}

func (s *Server) authUser(w http.ResponseWriter, r *http.Request) error {
	username := chi.URLParam(r, "username")
	u, err := s.store.UserByEmail(r.Context(), username)
	if stderrors.Is(err, store.ErrNotFound) {
		return newHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, u)
	return nil
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) error {
	var creds api.Credentials
	if err := decodeBody(r, &creds); err != nil {
		return err
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return newHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	cred, err := s.store.CredentialByEmail(r.Context(), creds.Email)
	if stderrors.Is(err, store.ErrNotFound) {
		return newHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	if !cred.Matches(creds.Password) {
		writeJSON(w, http.StatusOK, api.SignInResult{Success: false})
		return nil
	}

	role := cred.Role
	if role == "" {
		role = api.RoleUser
	}
	token, err := s.tokens.Issue(cred.UserID, creds.Email, role)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, api.SignInResult{
		Success: true,
		UserID:  cred.UserID,
		Role:    role,
		Token:   token,
	})
	return nil
}

// signOut acknowledges the request. Tokens are stateless and simply expire.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	return nil
}

func (s *Server) authenticated(w http.ResponseWriter, r *http.Request) error {
	ok := false
	if tok := bearerToken(r); tok != "" {
		if _, err := s.tokens.Verify(tok); err == nil {
			ok = true
		} else {
			s.logger.Debug("token verification failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, ok)
	return nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return newHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}
	return nil
}
