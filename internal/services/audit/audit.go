package audit

import (
	"log"
	"net"
	"net/http"

	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/models"
)

// Recorder appends audit-log rows for administrative actions taken outside
// the workflow engine. Recording never fails the caller.
type Recorder struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes one audit entry attributed to the request.
func (r *Recorder) Record(req *http.Request, userID *uint, action, resource string, resourceID *uint, details string) {
	entry := models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IPAddress:  remoteIP(req),
		UserAgent:  req.UserAgent(),
	}
	if err := r.db.Create(&entry).Error; err != nil {
		log.Printf("⚠️ Audit entry %s/%s not saved: %v", action, resource, err)
	}
}

func remoteIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
