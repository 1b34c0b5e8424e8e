// Critical and emergency audit events are produced to the alert topic by
// the ledger; this worker turns them into operator emails. Info and warning
// events stay in the audit table only.
package worker

import (
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/stream"
)

func (wk *Worker) SecurityAlertWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: securityAlertGroupID,
		Topic:   ledger.SecurityAlertTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	defer consumer.Close()

	for {
		select {
		case <-wk.Ctx.Done():
			log.Println("SecurityAlertWorker received cancellation signal, shutting down...")
			return
		default:
			event := consumer.Poll(100)
			switch e := event.(type) {
			case *kafka.Message:
				var alert ledger.SecurityAlertEvent
				if err := json.Unmarshal(e.Value, &alert); err != nil {
					log.Printf("Error decoding security alert: %v", err)
					continue
				}

				wk.sendSecurityAlert(&alert)
			case kafka.Error:
				log.Printf("Error: %v\n", e)
			case *kafka.AssignedPartitions:
				consumer.Assign(e.Partitions)
			case *kafka.RevokedPartitions:
				consumer.Unassign()
			}
		}
	}
}

func (wk *Worker) sendSecurityAlert(alert *ledger.SecurityAlertEvent) {
	if wk.NotificationEmail == "" {
		return
	}

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["EventType"] = alert.EventType
		emailData["UserID"] = alert.UserID
		emailData["AdminID"] = alert.AdminID
		emailData["Severity"] = alert.Severity
		emailData["Details"] = alert.Details
		emailData["OccurredAt"] = alert.OccurredAt

		err := wk.Mailer.Send(wk.NotificationEmail, emailData, "security-alert.tmpl")
		if err != nil {
			log.Printf("Error sending security alert email: %v", err)
			return err
		}

		return nil
	})
}
