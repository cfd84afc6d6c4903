package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/econsulaire/portal/internal/middleware"
	"github.com/econsulaire/portal/internal/models"
)

// listNotifications returns the caller's notifications, newest first.
func (r *Router) listNotifications(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)

	query := r.db.Where("user_id = ?", user.ID)
	if req.URL.Query().Get("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Limit(100).Find(&notifications).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

// unreadNotificationCount returns the caller's unread badge count.
func (r *Router) unreadNotificationCount(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)

	var n int64
	if err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", user.ID, false).Count(&n).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// markNotificationRead marks one of the caller's notifications read.
func (r *Router) markNotificationRead(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var notification models.Notification
	if err := r.db.Where("id = ? AND user_id = ?", id, user.ID).First(&notification).Error; err != nil {
		respondError(w, http.StatusNotFound, "Notification introuvable")
		return
	}

	if !notification.Read {
		now := time.Now()
		notification.Read = true
		notification.ReadAt = &now
		if err := r.db.Save(&notification).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Erreur interne")
			return
		}
	}
	respondJSON(w, http.StatusOK, notification)
}

// markAllNotificationsRead clears the caller's unread pile.
func (r *Router) markAllNotificationsRead(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)

	now := time.Now()
	result := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", user.ID, false).
		Updates(map[string]interface{}{"read": true, "read_at": now})
	if result.Error != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": result.RowsAffected})
}
