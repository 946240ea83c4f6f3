package handlers

import (
	"net/http"

	"github.com/ehcaw/lsclear-backend/internal/database"
)

// FileTree returns the nested file-tree snapshot for a user, the shape
// the editor sidebar renders. Read-only: file mutations go through the
// frontend's own CRUD routes.
// GET /api/files/tree?user_id=...
func FileTree(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	tree, err := database.GetFileTreeForUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load file tree")
		return
	}

	writeJSON(w, http.StatusOK, tree)
}
