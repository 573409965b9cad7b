package server

import (
	"net/http"
)

// handleUpdate forces a refresh from the portal, skipping the minimum
// interval between fetches.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.coordinator.ForceRefresh(r.Context()) {
		writeJSONError(w, "failed to fetch data from tauron", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
