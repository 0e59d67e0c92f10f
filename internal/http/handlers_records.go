package http

import (
	"context"
	"net/http"

	"tesoretto/internal/core"
)

// userFunc is a handler body that runs for an authenticated user.
type userFunc func(w http.ResponseWriter, r *http.Request, userID string)

func withUser(fn userFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		fn(w, r, userID)
	}
}

func listHandler[T any](list func(ctx context.Context, userID string) ([]T, error)) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
		items, err := list(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	})
}

func createHandler[T any](create func(ctx context.Context, userID string, v T) (T, error)) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
		var in T
		if err := decodeJSON(w, r, maxBodyBytes, &in); err != nil {
			writeError(w, r, err)
			return
		}
		out, err := create(r.Context(), userID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	})
}

func deleteHandler(del func(ctx context.Context, userID, id string) error) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
		if err := del(r.Context(), userID, r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleMarkIouPaid(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.records.MarkIouPaid(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type savingsRequest struct {
	Amount core.Money `json:"amount"`
}

func (s *Server) handleAddSavings(w http.ResponseWriter, r *http.Request, userID string) {
	var req savingsRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Amount.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.records.AddSavings(r.Context(), userID, r.PathValue("id"), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
