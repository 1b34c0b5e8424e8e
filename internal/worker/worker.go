package worker

import (
	"context"

	"github.com/kehindemorol/vestra/internal/helper"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/smtp"
	"github.com/kehindemorol/vestra/internal/stream"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	DB          repository.Database
	Ctx         context.Context
	Helper      *helper.HelperRepository
	Mailer      *smtp.Mailer

	// NotificationEmail is the operations address alerts are mailed to.
	// Empty disables the mail side of both workers.
	NotificationEmail string
}

const (
	// securityAlertGroupID is used by workers reacting to critical and
	// emergency audit events
	securityAlertGroupID = "security-alert-group"

	// withdrawalLifecycleGroupID is used by workers reacting to withdrawal
	// state changes
	withdrawalLifecycleGroupID = "withdrawal-lifecycle-group"
)

// Our workers typically need access to the database, the mailer and the
// kafka event stream; worker-specific dependencies are passed as arguments
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream:       wk.KafkaStream,
		DB:                wk.DB,
		Ctx:               wk.Ctx,
		Helper:            wk.Helper,
		Mailer:            wk.Mailer,
		NotificationEmail: wk.NotificationEmail,
	}
}
