package worker

import (
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/scheduler"
	"github.com/kehindemorol/vestra/internal/stream"
)

// WithdrawalLifecycleWorker mails the operations address when a withdrawal
// completes or fails. Submissions and cancellations pass through the topic
// too but only get logged.
func (wk *Worker) WithdrawalLifecycleWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: withdrawalLifecycleGroupID,
		Topic:   scheduler.WithdrawalLifecycleTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	defer consumer.Close()

	for {
		select {
		case <-wk.Ctx.Done():
			log.Println("WithdrawalLifecycleWorker received cancellation signal, shutting down...")
			return
		default:
			event := consumer.Poll(100)
			switch e := event.(type) {
			case *kafka.Message:
				var lifecycle scheduler.WithdrawalLifecycleEvent
				if err := json.Unmarshal(e.Value, &lifecycle); err != nil {
					log.Printf("Error decoding lifecycle event: %v", err)
					continue
				}

				log.Printf("Withdrawal %s is now %s", lifecycle.RequestID, lifecycle.Status)

				if lifecycle.Status == repository.WithdrawalStatusCompleted ||
					lifecycle.Status == repository.WithdrawalStatusFailed {
					wk.sendWithdrawalUpdate(&lifecycle)
				}
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

func (wk *Worker) sendWithdrawalUpdate(lifecycle *scheduler.WithdrawalLifecycleEvent) {
	if wk.NotificationEmail == "" {
		return
	}

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["RequestID"] = lifecycle.RequestID
		emailData["UserID"] = lifecycle.UserID
		emailData["Status"] = lifecycle.Status
		emailData["USDTAmount"] = lifecycle.USDTAmount
		emailData["NFTAmount"] = lifecycle.NFTAmount
		emailData["AdminID"] = lifecycle.AdminID
		emailData["BlockchainHash"] = lifecycle.BlockchainHash

		err := wk.Mailer.Send(wk.NotificationEmail, emailData, "withdrawal-update.tmpl")
		if err != nil {
			log.Printf("Error sending withdrawal update email: %v", err)
			return err
		}

		return nil
	})
}
