package http

import (
	"net/http"

	"tesoretto/internal/core"
)

const maxImportBytes = 8 << 20

type sheetsResponse struct {
	SpreadsheetID string `json:"spreadsheet_id"`
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request, userID string) {
	wallets, err := s.data.Wallets(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, userID string) {
	bundle, err := s.data.Export(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="tesoretto-export.json"`)
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, userID string) {
	var bundle core.DataBundle
	if err := decodeJSON(w, r, maxImportBytes, &bundle); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.data.Import(r.Context(), userID, bundle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request, userID string) {
	id, err := s.data.ExportToSheets(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sheetsResponse{SpreadsheetID: id})
}

func (s *Server) handleImportSheets(w http.ResponseWriter, r *http.Request, userID string) {
	res, err := s.data.ImportFromSheets(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReset deletes every record the user owns.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.data.Reset(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
