package job

import (
	"context"
	"log"
	"time"

	"rechargehub/internal/config"
	"rechargehub/internal/model"
	"rechargehub/internal/repository"
	"rechargehub/internal/service"

	"gorm.io/gorm"
)

// RefundRetryJob replays refund tasks that were parked because the
// immediate compensating credit failed. A task stays pending until the
// credit lands or the retry budget runs out; the refund itself is keyed
// on the order id so a replay can never double-credit.
type RefundRetryJob struct {
	outboxRepo *repository.OutboxRepository
	refunder   *service.RefundManager
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewRefundRetryJob(db *gorm.DB, refunder *service.RefundManager, cfg *config.Config) *RefundRetryJob {
	interval := time.Duration(cfg.Business.RefundRetrySeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RefundRetryJob{
		outboxRepo: repository.NewOutboxRepository(db),
		refunder:   refunder,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  50,
	}
}

func (j *RefundRetryJob) Start(ctx context.Context) {
	log.Println("[RefundRetry] refund replay task started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RefundRetry] context cancelled, exiting")
			return
		case <-j.stopCh:
			log.Println("[RefundRetry] stopped")
			return
		case <-ticker.C:
			j.processPendingTasks(ctx)
		}
	}
}

func (j *RefundRetryJob) Stop() {
	close(j.stopCh)
}

func (j *RefundRetryJob) processPendingTasks(ctx context.Context) {
	tasks, err := j.outboxRepo.GetPendingRefundTasks(ctx, j.batchSize)
	if err != nil {
		log.Printf("[RefundRetry] failed to load pending tasks: %v", err)
		return
	}

	for _, task := range tasks {
		j.runTask(ctx, task)
	}
}

func (j *RefundRetryJob) runTask(ctx context.Context, task *model.OutboxMessage) {
	err := j.refunder.RetryTask(ctx, task.Payload)
	if err == nil {
		if updateErr := j.outboxRepo.UpdateStatus(ctx, task.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[RefundRetry] failed to mark task done: id=%d, err=%v", task.ID, updateErr)
		} else {
			log.Printf("[RefundRetry] refund replayed: id=%d, key=%s", task.ID, task.MessageKey)
		}
		return
	}

	log.Printf("[RefundRetry] replay failed: id=%d, key=%s, err=%v", task.ID, task.MessageKey, err)

	if err := j.outboxRepo.IncrementRetryCount(ctx, task.ID); err != nil {
		log.Printf("[RefundRetry] failed to bump retry count: id=%d, err=%v", task.ID, err)
		return
	}

	if task.RetryCount+1 >= j.cfg.Business.MaxRetryCount {
		// Out of budget. The entry stays FAILED for manual repair; the
		// order record still shows the missing refund.
		if err := j.outboxRepo.MarkAsFailed(ctx, task.ID); err != nil {
			log.Printf("[RefundRetry] failed to mark task failed: id=%d, err=%v", task.ID, err)
		} else {
			log.Printf("[RefundRetry] task gave up after %d retries: id=%d, key=%s", task.RetryCount+1, task.ID, task.MessageKey)
		}
	}
}
