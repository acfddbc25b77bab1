package gateway

import (
	"github.com/TirthC27/HealthID/internal/audit"
	"github.com/TirthC27/HealthID/internal/consent"
	"github.com/TirthC27/HealthID/internal/directory"
	"github.com/TirthC27/HealthID/internal/qrsession"
	"github.com/TirthC27/HealthID/internal/records"
	"github.com/TirthC27/HealthID/pkg/logger"
)

// Service is the HTTP-facing gateway over the portal's domain services
type Service struct {
	directory *directory.Service
	sessions  *qrsession.Manager
	ledger    *consent.Ledger
	records   *records.Service
	audits    *audit.StoreRecorder
	logger    *logger.Logger
}

// NewService creates a new gateway service
func NewService(
	dir *directory.Service,
	sessions *qrsession.Manager,
	ledger *consent.Ledger,
	recs *records.Service,
	audits *audit.StoreRecorder,
	log *logger.Logger,
) *Service {
	return &Service{
		directory: dir,
		sessions:  sessions,
		ledger:    ledger,
		records:   recs,
		audits:    audits,
		logger:    log,
	}
}
