package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/config"
	"github.com/econsulaire/portal/internal/middleware"
	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/ratelimit"
	"github.com/econsulaire/portal/internal/services/audit"
	"github.com/econsulaire/portal/internal/services/backup"
	"github.com/econsulaire/portal/internal/services/mailer"
	"github.com/econsulaire/portal/internal/services/storage"
	"github.com/econsulaire/portal/internal/websocket"
	"github.com/econsulaire/portal/internal/workflow"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Engine  *workflow.Engine
	Storage *storage.Store
	Backups *backup.Service
	Mailer  *mailer.Mailer
	Hub     *websocket.Hub
	Logins  ratelimit.Store
}

// Router wraps the mux router and the application dependencies
type Router struct {
	*mux.Router
	db      *gorm.DB
	cfg     *config.Config
	engine  *workflow.Engine
	storage *storage.Store
	backups *backup.Service
	mailer  *mailer.Mailer
	hub     *websocket.Hub
	logins  ratelimit.Store
	audit   *audit.Recorder
}

// NewRouter creates the HTTP router with all routes
func NewRouter(d Deps) *Router {
	r := &Router{
		Router:  mux.NewRouter(),
		db:      d.DB,
		cfg:     d.Cfg,
		engine:  d.Engine,
		storage: d.Storage,
		backups: d.Backups,
		mailer:  d.Mailer,
		hub:     d.Hub,
		logins:  d.Logins,
		audit:   audit.New(d.DB),
	}

	authed := middleware.Auth(d.DB, d.Cfg.JWTSecret)
	citizenOnly := middleware.RequireRole(models.RoleCitizen)
	agentOnly := middleware.RequireRole(models.RoleAgent)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	supervisorOnly := middleware.RequireRole(models.RoleSupervisor)

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/admin/login", r.adminLogin).Methods("POST")
	auth.HandleFunc("/consulate/login", r.consulateLogin).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")
	auth.Handle("/profile", authed(http.HandlerFunc(r.getProfile))).Methods("GET")
	auth.Handle("/profile", authed(http.HandlerFunc(r.updateProfile))).Methods("PUT")

	// Public routes (no auth)
	public := r.PathPrefix("/api/public").Subrouter()
	public.HandleFunc("/track/{reference}", r.trackApplication).Methods("GET")
	public.HandleFunc("/units", r.listActiveUnits).Methods("GET")
	public.HandleFunc("/units/{id}/services", r.listUnitServicesPublic).Methods("GET")

	// Citizen routes
	citizen := r.PathPrefix("/api/citizen").Subrouter()
	citizen.Use(mux.MiddlewareFunc(authed))
	citizen.HandleFunc("/applications", citizenOnly(r.submitApplication)).Methods("POST")
	citizen.HandleFunc("/applications", citizenOnly(r.listMyApplications)).Methods("GET")
	citizen.HandleFunc("/applications/{id}", citizenOnly(r.getMyApplication)).Methods("GET")
	citizen.HandleFunc("/applications/{id}/pay", citizenOnly(r.payApplication)).Methods("POST")
	citizen.HandleFunc("/applications/{id}/documents", citizenOnly(r.uploadDocument)).Methods("POST")
	citizen.HandleFunc("/documents/{id}/download", citizenOnly(r.downloadDocument)).Methods("GET")

	// Agent routes
	agent := r.PathPrefix("/api/agent").Subrouter()
	agent.Use(mux.MiddlewareFunc(authed))
	agent.HandleFunc("/dashboard", agentOnly(r.agentDashboard)).Methods("GET")
	agent.HandleFunc("/applications/pending", agentOnly(r.pendingApplications)).Methods("GET")
	agent.HandleFunc("/applications/mine", agentOnly(r.myAssignedApplications)).Methods("GET")
	agent.HandleFunc("/applications/{id}", agentOnly(r.getUnitApplication)).Methods("GET")
	agent.HandleFunc("/applications/{id}/take", agentOnly(r.takeApplication)).Methods("POST")
	agent.HandleFunc("/applications/{id}/process", agentOnly(r.processApplication)).Methods("POST")

	// Unit admin routes
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(mux.MiddlewareFunc(authed))
	admin.HandleFunc("/dashboard", adminOnly(r.adminDashboard)).Methods("GET")
	admin.HandleFunc("/services", adminOnly(r.listUnitServices)).Methods("GET")
	admin.HandleFunc("/services", adminOnly(r.configureUnitService)).Methods("POST")
	admin.HandleFunc("/services/{id}/toggle", adminOnly(r.toggleUnitService)).Methods("POST")
	admin.HandleFunc("/personnel", adminOnly(r.listUnitPersonnel)).Methods("GET")
	admin.HandleFunc("/unit", adminOnly(r.getUnitInfo)).Methods("GET")
	admin.HandleFunc("/unit", adminOnly(r.updateUnitInfo)).Methods("PUT")

	// Supervisor routes
	sup := r.PathPrefix("/api/supervisor").Subrouter()
	sup.Use(mux.MiddlewareFunc(authed))
	sup.HandleFunc("/users", supervisorOnly(r.listUsers)).Methods("GET")
	sup.HandleFunc("/users", supervisorOnly(r.createUser)).Methods("POST")
	sup.HandleFunc("/users/{id}", supervisorOnly(r.updateUser)).Methods("PUT")
	sup.HandleFunc("/users/{id}/toggle", supervisorOnly(r.toggleUser)).Methods("POST")
	sup.HandleFunc("/units", supervisorOnly(r.listUnits)).Methods("GET")
	sup.HandleFunc("/units", supervisorOnly(r.createUnit)).Methods("POST")
	sup.HandleFunc("/units/{id}", supervisorOnly(r.updateUnit)).Methods("PUT")
	sup.HandleFunc("/units/{id}/toggle", supervisorOnly(r.toggleUnit)).Methods("POST")
	sup.HandleFunc("/services", supervisorOnly(r.listServices)).Methods("GET")
	sup.HandleFunc("/services", supervisorOnly(r.createService)).Methods("POST")
	sup.HandleFunc("/services/{id}", supervisorOnly(r.updateService)).Methods("PUT")
	sup.HandleFunc("/services/{id}/toggle", supervisorOnly(r.toggleService)).Methods("POST")
	sup.HandleFunc("/applications/{id}/status", supervisorOnly(r.updateApplicationStatus)).Methods("PUT")
	sup.HandleFunc("/audit-logs", supervisorOnly(r.listAuditLogs)).Methods("GET")
	sup.HandleFunc("/system/status", supervisorOnly(r.systemStatus)).Methods("GET")
	sup.HandleFunc("/backups", supervisorOnly(r.listBackups)).Methods("GET")
	sup.HandleFunc("/backups", supervisorOnly(r.createBackup)).Methods("POST")
	sup.HandleFunc("/backups/{filename}/restore", supervisorOnly(r.restoreBackup)).Methods("POST")
	sup.HandleFunc("/email/test", supervisorOnly(r.testEmail)).Methods("POST")

	// Notification routes, shared by every authenticated role
	notif := r.PathPrefix("/api/notifications").Subrouter()
	notif.Use(mux.MiddlewareFunc(authed))
	notif.HandleFunc("", r.listNotifications).Methods("GET")
	notif.HandleFunc("/unread-count", r.unreadNotificationCount).Methods("GET")
	notif.HandleFunc("/{id}/read", r.markNotificationRead).Methods("POST")
	notif.HandleFunc("/read-all", r.markAllNotificationsRead).Methods("POST")

	// Live notification stream
	r.Handle("/ws/notifications", authed(http.HandlerFunc(r.serveNotificationSocket))).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "e-consulaire-api",
	})
}

// serveNotificationSocket upgrades the request to a notification stream.
func (r *Router) serveNotificationSocket(w http.ResponseWriter, req *http.Request) {
	if r.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "Notifications temps réel indisponibles")
		return
	}
	user := middleware.CurrentUser(req)
	websocket.ServeWs(r.hub, user.ID, w, req)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// requestMeta extracts audit attribution from the request.
func requestMeta(req *http.Request) workflow.Meta {
	ip := req.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = req.RemoteAddr
	}
	return workflow.Meta{
		IPAddress: ip,
		UserAgent: req.UserAgent(),
	}
}
