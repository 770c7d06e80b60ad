package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/services"
	"github.com/damir-m/splitmate/pkg/logger"
	"github.com/damir-m/splitmate/pkg/middleware"
)

// FriendHandler manages HTTP endpoints for the friend graph.
type FriendHandler struct {
	Service *services.FriendService
}

// NewFriendHandler initializes a new FriendHandler.
func NewFriendHandler(service *services.FriendService) *FriendHandler {
	return &FriendHandler{Service: service}
}

// AddFriendHandler adds the user behind the submitted handle as a friend.
func (h *FriendHandler) AddFriendHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logger.Log.Warn("Unauthorized attempt to add friend")
		return
	}

	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		logger.Log.Warnf("Failed to decode add friend body: %v", err)
		return
	}
	defer r.Body.Close()

	selfID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	friend, err := h.Service.AddFriend(r.Context(), selfID, body.Username)
	if err != nil {
		logger.Log.Warnf("Failed to add friend for user %s: %v", claims.UserID, err)
		writeError(w, err)
		return
	}

	logger.Log.Infof("User %s added %s as friend", claims.UserID, friend.ID.Hex())
	writeJSON(w, http.StatusOK, friend)
}

// RemoveFriendHandler severs the relation with the friend in the path.
func (h *FriendHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logger.Log.Warn("Unauthorized attempt to remove friend")
		return
	}

	vars := mux.Vars(r)
	friendID, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		http.Error(w, "Invalid friend ID", http.StatusBadRequest)
		logger.Log.Warnf("Invalid friend ID: %v", err)
		return
	}

	selfID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.Service.RemoveFriend(r.Context(), selfID, friendID); err != nil {
		logger.Log.Errorf("Failed to remove friend %s for user %s: %v", vars["id"], claims.UserID, err)
		writeError(w, err)
		return
	}

	logger.Log.Infof("User %s removed friend %s", claims.UserID, vars["id"])
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Friend removed",
	})
}

// GetFriendsHandler returns the caller's current friend list.
func (h *FriendHandler) GetFriendsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logger.Log.Warn("Unauthorized attempt to get friends")
		return
	}

	selfID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	friends, err := h.Service.ListFriends(r.Context(), selfID)
	if err != nil {
		logger.Log.Errorf("Failed to fetch friends for user %s: %v", claims.UserID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, friends)
}
