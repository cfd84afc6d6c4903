package workflow

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/models"
)

// Events receives workflow side effects after the durable transaction has
// committed. Implementations are best-effort: failures are logged by the
// implementation and never reach the engine.
type Events interface {
	ApplicationSubmitted(app *models.Application)
	StatusChanged(app *models.Application, oldStatus models.Status, comment string)
}

// DocumentGenerator renders the official PDF for an approved application
// and returns the stored file path and size.
type DocumentGenerator interface {
	GenerateOfficial(app *models.Application, applicant *models.User) (path string, size int64, err error)
}

// Config holds workflow policy.
type Config struct {
	// AllowReopen permits SetStatus to move an application out of a
	// terminal state. Off by default.
	AllowReopen bool
}

// Meta carries request attribution recorded in the audit trail.
type Meta struct {
	IPAddress string
	UserAgent string
}

// Engine owns every status mutation of an Application. All durable writes
// of a transition (status column, history row, in-app notifications, audit
// row) happen in one transaction; email and push dispatch run after commit.
type Engine struct {
	db     *gorm.DB
	cfg    Config
	events Events
	docs   DocumentGenerator
}

// NewEngine creates a workflow engine over the given database.
func NewEngine(db *gorm.DB, cfg Config) *Engine {
	return &Engine{db: db, cfg: cfg}
}

// SetEvents registers the post-commit side-effect dispatcher.
func (e *Engine) SetEvents(ev Events) {
	e.events = ev
}

// SetDocumentGenerator registers the official-document PDF generator.
func (e *Engine) SetDocumentGenerator(g DocumentGenerator) {
	e.docs = g
}

// SubmitInput describes a new citizen application.
type SubmitInput struct {
	User            *models.User
	UnitID          uint
	ServiceType     string
	FormData        datatypes.JSON
	Fee             float64
	AppointmentDate *time.Time
	Meta            Meta
}

const referenceAttempts = 5

// Submit creates an application in status "soumise", generating a unique
// reference number, the initial history row, and the agent notification
// fan-out for the target unit, all in one transaction.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*models.Application, error) {
	app := &models.Application{
		UserID:          in.User.ID,
		ConsularUnitID:  in.UnitID,
		ServiceType:     in.ServiceType,
		Status:          models.StatusSubmitted,
		FormData:        in.FormData,
		PaymentAmount:   in.Fee,
		PaymentStatus:   models.PaymentPending,
		AppointmentDate: in.AppointmentDate,
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, err := uniqueReference(tx, in.ServiceType)
		if err != nil {
			return err
		}
		app.ReferenceNumber = ref

		if err := tx.Create(app).Error; err != nil {
			return fmt.Errorf("create application: %w", err)
		}

		history := models.StatusHistory{
			ApplicationID: app.ID,
			NewStatus:     models.StatusSubmitted,
			ChangedBy:     &in.User.ID,
			Comment:       "Demande soumise par l'usager",
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("create status history: %w", err)
		}

		if err := e.fanOutNewApplication(tx, app, in.User); err != nil {
			return err
		}

		return audit(tx, &in.User.ID, "create_application", app.ID,
			fmt.Sprintf("Demande %s soumise (%s)", app.ReferenceNumber, app.ServiceType), in.Meta)
	})
	if err != nil {
		return nil, err
	}

	if e.events != nil {
		e.events.ApplicationSubmitted(app)
	}
	return app, nil
}

// uniqueReference generates a reference number, retrying on the rare
// collision instead of surfacing a constraint violation.
func uniqueReference(tx *gorm.DB, serviceType string) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		ref := GenerateReference(serviceType, time.Now())
		var n int64
		if err := tx.Model(&models.Application{}).
			Where("reference_number = ?", ref).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return ref, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique reference for %q", serviceType)
}

// fanOutNewApplication writes the in-app notifications for a submission:
// one per active agent of the unit, plus the unit admin if present.
func (e *Engine) fanOutNewApplication(tx *gorm.DB, app *models.Application, citizen *models.User) error {
	var agents []models.User
	if err := tx.Where("consular_unit_id = ? AND role = ? AND active = ?",
		app.ConsularUnitID, models.RoleAgent, true).Find(&agents).Error; err != nil {
		return fmt.Errorf("list unit agents: %w", err)
	}

	for i := range agents {
		n := models.Notification{
			UserID:      agents[i].ID,
			Type:        models.NotificationNewApplication,
			Title:       fmt.Sprintf("Nouvelle demande: %s", app.ServiceDisplay()),
			Message:     fmt.Sprintf("Demande %s reçue de %s", app.ReferenceNumber, citizen.FullName()),
			ReferenceID: &app.ID,
		}
		if err := tx.Create(&n).Error; err != nil {
			return fmt.Errorf("notify agent %d: %w", agents[i].ID, err)
		}
	}

	var admin models.User
	err := tx.Where("consular_unit_id = ? AND role = ? AND active = ?",
		app.ConsularUnitID, models.RoleAdmin, true).First(&admin).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return fmt.Errorf("find unit admin: %w", err)
	}

	n := models.Notification{
		UserID:      admin.ID,
		Type:        models.NotificationUnitAdmin,
		Title:       "Nouvelle demande dans votre unité",
		Message:     fmt.Sprintf("Demande %s pour %s", app.ReferenceNumber, app.ServiceDisplay()),
		ReferenceID: &app.ID,
	}
	return tx.Create(&n).Error
}

// Take assigns a submitted application to an agent. The status flip is a
// conditional update so two racing agents cannot both win.
func (e *Engine) Take(ctx context.Context, appID uint, agent *models.User, meta Meta) (*models.Application, error) {
	if agent.ConsularUnitID == nil {
		return nil, ErrWrongUnit
	}

	var app models.Application
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&app, appID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if app.ConsularUnitID != *agent.ConsularUnitID {
			return ErrWrongUnit
		}

		res := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", appID, models.StatusSubmitted).
			Updates(map[string]interface{}{
				"status":       models.StatusProcessing,
				"processed_by": agent.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyTaken
		}

		old := models.StatusSubmitted
		history := models.StatusHistory{
			ApplicationID: app.ID,
			OldStatus:     &old,
			NewStatus:     models.StatusProcessing,
			ChangedBy:     &agent.ID,
			Comment:       fmt.Sprintf("Demande prise en charge par %s", agent.FullName()),
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		// Clear the agent's pending alert for this application, if any.
		now := time.Now()
		tx.Model(&models.Notification{}).
			Where("user_id = ? AND type = ? AND reference_id = ? AND read = ?",
				agent.ID, models.NotificationNewApplication, app.ID, false).
			Updates(map[string]interface{}{"read": true, "read_at": now})

		return audit(tx, &agent.ID, auditAction(ActionTake), app.ID,
			fmt.Sprintf("Demande %s prise en charge", app.ReferenceNumber), meta)
	})
	if err != nil {
		return nil, err
	}

	app.Status = models.StatusProcessing
	app.ProcessedBy = &agent.ID
	return &app, nil
}

// Process resolves an application the agent has taken. The comment is
// mandatory; the action must be an allowed transition from the current
// status. A rejection stores the comment as the rejection reason.
func (e *Engine) Process(ctx context.Context, appID uint, agent *models.User, action Action, comment string, meta Meta) (*models.Application, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, ErrCommentRequired
	}

	var app models.Application
	var oldStatus models.Status
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&app, appID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if agent.ConsularUnitID == nil || app.ConsularUnitID != *agent.ConsularUnitID {
			return ErrWrongUnit
		}
		if app.ProcessedBy == nil || *app.ProcessedBy != agent.ID {
			return ErrNotProcessor
		}

		next, err := Next(app.Status, action)
		if err != nil {
			return err
		}
		oldStatus = app.Status

		updates := map[string]interface{}{"status": next}
		if action == ActionReject {
			updates["rejection_reason"] = comment
		}
		// Guard against a concurrent transition of the same row.
		res := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", app.ID, oldStatus).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		history := models.StatusHistory{
			ApplicationID: app.ID,
			OldStatus:     &oldStatus,
			NewStatus:     next,
			ChangedBy:     &agent.ID,
			Comment:       comment,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		notif := models.Notification{
			UserID:      app.UserID,
			Type:        models.NotificationStatusChange,
			Title:       fmt.Sprintf("Demande %s", app.ReferenceNumber),
			Message:     fmt.Sprintf("Statut mis à jour: %s", next.Display()),
			ReferenceID: &app.ID,
		}
		if err := tx.Create(&notif).Error; err != nil {
			return err
		}

		app.Status = next
		if action == ActionReject {
			app.RejectionReason = comment
		}

		return audit(tx, &agent.ID, auditAction(action), app.ID,
			fmt.Sprintf("Demande %s %s", app.ReferenceNumber, next), meta)
	})
	if err != nil {
		return nil, err
	}

	if app.Status == models.StatusApproved {
		e.attachOfficialDocument(ctx, &app)
	}

	if e.events != nil {
		e.events.StatusChanged(&app, oldStatus, comment)
	}
	return &app, nil
}

// SetStatus is the generic staff status update. Targets are limited to the
// four canonical statuses; terminal states refuse to move unless reopening
// is enabled. Approval attaches the official PDF document, best-effort.
func (e *Engine) SetStatus(ctx context.Context, appID uint, staff *models.User, newStatus models.Status, comment, rejectionReason string, meta Meta) (*models.Application, error) {
	switch newStatus {
	case models.StatusSubmitted, models.StatusProcessing, models.StatusApproved, models.StatusRejected:
	default:
		return nil, ErrInvalidStatus
	}

	var app models.Application
	var oldStatus models.Status
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&app, appID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if IsTerminal(app.Status) && !e.cfg.AllowReopen {
			return ErrTerminalState
		}
		oldStatus = app.Status

		updates := map[string]interface{}{
			"status":       newStatus,
			"processed_by": staff.ID,
		}
		if rejectionReason != "" {
			updates["rejection_reason"] = rejectionReason
		}
		if err := tx.Model(&models.Application{}).
			Where("id = ?", app.ID).Updates(updates).Error; err != nil {
			return err
		}

		history := models.StatusHistory{
			ApplicationID: app.ID,
			OldStatus:     &oldStatus,
			NewStatus:     newStatus,
			ChangedBy:     &staff.ID,
			Comment:       comment,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		notif := models.Notification{
			UserID:      app.UserID,
			Type:        models.NotificationStatusChange,
			Title:       fmt.Sprintf("Demande %s", app.ReferenceNumber),
			Message:     fmt.Sprintf("Statut mis à jour: %s", newStatus.Display()),
			ReferenceID: &app.ID,
		}
		if err := tx.Create(&notif).Error; err != nil {
			return err
		}

		app.Status = newStatus
		app.ProcessedBy = &staff.ID
		if rejectionReason != "" {
			app.RejectionReason = rejectionReason
		}

		return audit(tx, &staff.ID, "update_status", app.ID,
			fmt.Sprintf("Statut changé de %s à %s", oldStatus, newStatus), meta)
	})
	if err != nil {
		return nil, err
	}

	// The status change is committed; document generation never unwinds it.
	if newStatus == models.StatusApproved {
		e.attachOfficialDocument(ctx, &app)
	}

	if e.events != nil {
		e.events.StatusChanged(&app, oldStatus, comment)
	}
	return &app, nil
}

// attachOfficialDocument generates the approval PDF and records it as a
// Document. Failures are logged only.
func (e *Engine) attachOfficialDocument(ctx context.Context, app *models.Application) {
	if e.docs == nil {
		return
	}

	var applicant models.User
	if err := e.db.WithContext(ctx).First(&applicant, app.UserID).Error; err != nil {
		log.Printf("⚠️ Official document: applicant %d not found: %v", app.UserID, err)
		return
	}

	path, size, err := e.docs.GenerateOfficial(app, &applicant)
	if err != nil {
		log.Printf("⚠️ Official document generation failed for %s: %v", app.ReferenceNumber, err)
		return
	}

	doc := models.Document{
		ApplicationID:    app.ID,
		Filename:         filepath.Base(path),
		OriginalFilename: fmt.Sprintf("document_officiel_%s.pdf", app.ReferenceNumber),
		FilePath:         path,
		FileSize:         size,
		MimeType:         "application/pdf",
		DocumentType:     models.DocumentTypeOfficial,
	}
	if err := e.db.WithContext(ctx).Create(&doc).Error; err != nil {
		log.Printf("⚠️ Official document record for %s not saved: %v", app.ReferenceNumber, err)
	}
}

// audit appends an audit-log row inside the caller's transaction.
func audit(tx *gorm.DB, userID *uint, action string, resourceID uint, details string, meta Meta) error {
	row := models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "application",
		ResourceID: &resourceID,
		Details:    details,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
	return tx.Create(&row).Error
}
