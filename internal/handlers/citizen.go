package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/datatypes"

	"github.com/econsulaire/portal/internal/middleware"
	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/services/storage"
	"github.com/econsulaire/portal/internal/workflow"
)

// SubmitApplicationRequest carries a new application.
type SubmitApplicationRequest struct {
	ConsularUnitID  uint            `json:"consularUnitId"`
	ServiceType     string          `json:"serviceType"`
	FormData        json.RawMessage `json:"formData"`
	AppointmentDate *time.Time      `json:"appointmentDate"`
}

// submitApplication creates a new application for the authenticated citizen.
// The fee comes from the unit's service configuration, never from the client.
func (r *Router) submitApplication(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)

	var in SubmitApplicationRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	var unit models.ConsularUnit
	if err := r.db.Where("id = ? AND active = ?", in.ConsularUnitID, true).First(&unit).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Unité consulaire introuvable ou inactive")
		return
	}

	var service models.Service
	if err := r.db.Where("code = ? AND active = ?", in.ServiceType, true).First(&service).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Service consulaire introuvable ou inactif")
		return
	}

	// Unit-specific fee when configured, base fee otherwise
	fee := service.BaseFee
	var unitService models.UnitService
	err := r.db.Where("consular_unit_id = ? AND service_id = ?", unit.ID, service.ID).
		First(&unitService).Error
	if err == nil {
		if !unitService.Active {
			respondError(w, http.StatusBadRequest, "Ce service n'est pas proposé par cette unité")
			return
		}
		fee = unitService.Fee
	}

	app, err := r.engine.Submit(req.Context(), workflow.SubmitInput{
		User:            user,
		UnitID:          unit.ID,
		ServiceType:     service.Code,
		FormData:        datatypes.JSON(in.FormData),
		Fee:             fee,
		AppointmentDate: in.AppointmentDate,
		Meta:            requestMeta(req),
	})
	if err != nil {
		log.Printf("⚠️ Submit application: %v", err)
		respondError(w, http.StatusInternalServerError, "Impossible d'enregistrer la demande")
		return
	}

	respondJSON(w, http.StatusCreated, app)
}

// listMyApplications returns the citizen's own applications, newest first.
func (r *Router) listMyApplications(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)

	var apps []models.Application
	err := r.db.Preload("Documents").
		Where("user_id = ?", user.ID).Order("created_at DESC").Find(&apps).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

// getMyApplication returns one of the citizen's applications with its
// full history.
func (r *Router) getMyApplication(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var app models.Application
	err = r.db.Preload("Documents").Preload("StatusHistory").Preload("Unit").
		Where("id = ? AND user_id = ?", id, user.ID).First(&app).Error
	if err != nil {
		respondError(w, http.StatusNotFound, "Demande introuvable")
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// payApplication simulates the payment of the application fee.
func (r *Router) payApplication(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var app models.Application
	if err := r.db.Where("id = ? AND user_id = ?", id, user.ID).First(&app).Error; err != nil {
		respondError(w, http.StatusNotFound, "Demande introuvable")
		return
	}
	if app.PaymentStatus == models.PaymentPaid {
		respondError(w, http.StatusConflict, "Cette demande est déjà payée")
		return
	}

	if err := r.db.Model(&app).Update("payment_status", models.PaymentPaid).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	app.PaymentStatus = models.PaymentPaid
	respondJSON(w, http.StatusOK, app)
}

// uploadDocument attaches a supporting file to the citizen's application.
func (r *Router) uploadDocument(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var app models.Application
	if err := r.db.Where("id = ? AND user_id = ?", id, user.ID).First(&app).Error; err != nil {
		respondError(w, http.StatusNotFound, "Demande introuvable")
		return
	}

	if err := req.ParseMultipartForm(r.cfg.Uploads.MaxSizeByte); err != nil {
		respondError(w, http.StatusBadRequest, "Fichier trop volumineux ou requête invalide")
		return
	}
	file, header, err := req.FormFile("document")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Aucun fichier fourni")
		return
	}
	defer file.Close()

	docType := req.FormValue("documentType")
	if docType == "" {
		docType = "justificatif"
	}

	saved, err := r.storage.SaveUpload(app.ID, docType, header)
	switch err {
	case nil:
	case storage.ErrFileTooLarge:
		respondError(w, http.StatusBadRequest, "Fichier trop volumineux")
		return
	case storage.ErrFileTypeNotAllowed:
		respondError(w, http.StatusBadRequest, "Type de fichier non autorisé")
		return
	default:
		log.Printf("⚠️ Upload for application %d: %v", app.ID, err)
		respondError(w, http.StatusInternalServerError, "Échec de l'enregistrement du fichier")
		return
	}

	doc := models.Document{
		ApplicationID:    app.ID,
		Filename:         saved.Filename,
		OriginalFilename: saved.OriginalFilename,
		FilePath:         saved.Path,
		FileSize:         saved.Size,
		MimeType:         saved.MimeType,
		DocumentType:     docType,
	}
	if err := r.db.Create(&doc).Error; err != nil {
		r.storage.Remove(saved.Path)
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	respondJSON(w, http.StatusCreated, doc)
}

// downloadDocument streams a document the citizen owns. Staff documents on
// the citizen's own applications are reachable too.
func (r *Router) downloadDocument(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var doc models.Document
	err = r.db.Joins("JOIN applications ON applications.id = documents.application_id").
		Where("documents.id = ? AND applications.user_id = ?", id, user.ID).
		First(&doc).Error
	if err != nil {
		respondError(w, http.StatusNotFound, "Document introuvable")
		return
	}

	file, err := r.storage.Open(doc.FilePath)
	if err != nil {
		log.Printf("⚠️ Open document %d: %v", doc.ID, err)
		respondError(w, http.StatusNotFound, "Fichier indisponible")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+doc.OriginalFilename+"\"")
	http.ServeContent(w, req, doc.OriginalFilename, doc.CreatedAt, file)
}
