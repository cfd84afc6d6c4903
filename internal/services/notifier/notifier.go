package notifier

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/websocket"
)

// Mailer is the outbound email dependency.
type Mailer interface {
	Send(toName, toEmail, subject, htmlBody string) error
}

// Notifier handles the best-effort side effects of workflow changes:
// transactional rows are written by the workflow engine, this package
// delivers the emails and live pushes afterwards. Failures are logged,
// never propagated.
type Notifier struct {
	db     *gorm.DB
	mailer Mailer
	hub    *websocket.Hub
}

func New(db *gorm.DB, mailer Mailer, hub *websocket.Hub) *Notifier {
	return &Notifier{db: db, mailer: mailer, hub: hub}
}

// ApplicationSubmitted fans out a new submission: email to every active
// agent of the unit, confirmation email to the citizen, live push to
// anyone connected.
func (n *Notifier) ApplicationSubmitted(app *models.Application) {
	var citizen models.User
	if err := n.db.First(&citizen, app.UserID).Error; err != nil {
		log.Printf("⚠️ Notifier: applicant %d not found: %v", app.UserID, err)
		return
	}

	var agents []models.User
	if err := n.db.Where("consular_unit_id = ? AND role = ? AND active = ?",
		app.ConsularUnitID, models.RoleAgent, true).Find(&agents).Error; err != nil {
		log.Printf("⚠️ Notifier: loading agents for unit %d: %v", app.ConsularUnitID, err)
	}

	subject := fmt.Sprintf("Nouvelle demande %s", app.ReferenceNumber)
	body := fmt.Sprintf(
		"<p>Une nouvelle demande de <strong>%s</strong> a été soumise par %s.</p><p>Référence: %s</p>",
		app.ServiceDisplay(), citizen.FullName(), app.ReferenceNumber)
	for i := range agents {
		n.send(&agents[i], subject, body)
		n.push(agents[i].ID, "nouvelle_demande", app)
	}

	confirmation := fmt.Sprintf(
		"<p>Bonjour %s,</p><p>Votre demande de <strong>%s</strong> a bien été enregistrée sous la référence <strong>%s</strong>.</p><p>Vous serez informé(e) de chaque changement de statut.</p>",
		citizen.FullName(), app.ServiceDisplay(), app.ReferenceNumber)
	n.send(&citizen, fmt.Sprintf("Confirmation de votre demande %s", app.ReferenceNumber), confirmation)
}

// StatusChanged informs the owning citizen of a status move.
func (n *Notifier) StatusChanged(app *models.Application, oldStatus models.Status, comment string) {
	var citizen models.User
	if err := n.db.First(&citizen, app.UserID).Error; err != nil {
		log.Printf("⚠️ Notifier: applicant %d not found: %v", app.UserID, err)
		return
	}

	body := fmt.Sprintf(
		"<p>Bonjour %s,</p><p>Votre demande <strong>%s</strong> est passée au statut: <strong>%s</strong>.</p>",
		citizen.FullName(), app.ReferenceNumber, app.Status.Display())
	if app.Status == models.StatusRejected && app.RejectionReason != "" {
		body += fmt.Sprintf("<p>Motif: %s</p>", app.RejectionReason)
	} else if comment != "" {
		body += fmt.Sprintf("<p>Commentaire: %s</p>", comment)
	}

	n.send(&citizen, fmt.Sprintf("Mise à jour de votre demande %s", app.ReferenceNumber), body)
	n.push(citizen.ID, "demande_traitee", app)
}

func (n *Notifier) send(to *models.User, subject, body string) {
	if n.mailer == nil {
		return
	}
	if err := n.mailer.Send(to.FullName(), to.Email, subject, body); err != nil {
		log.Printf("⚠️ Email to %s failed: %v", to.Email, err)
	}
}

func (n *Notifier) push(userID uint, event string, app *models.Application) {
	if n.hub == nil {
		return
	}
	n.hub.SendToUser(userID, map[string]interface{}{
		"type":      event,
		"reference": app.ReferenceNumber,
		"status":    string(app.Status),
	})
}
