package job

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"rechargehub/internal/config"
	"rechargehub/internal/model"
	"rechargehub/internal/repository"

	"gorm.io/gorm"
)

// StalePendingEvent flags an order stuck Pending past the sweep window.
type StalePendingEvent struct {
	OrderID    string `json:"order_id"`
	UserID     int64  `json:"user_id"`
	ProviderID int64  `json:"provider_id"`
	ApiID      int64  `json:"api_id"`
	Amount     string `json:"amount"`
	PendingFor string `json:"pending_for"`
}

// PendingSweepJob surfaces orders stuck Pending. It only reports: a
// Pending order may have succeeded upstream, so failing it automatically
// would risk refunding a delivered recharge. Resolution comes from the
// callback or from an operator.
type PendingSweepJob struct {
	db         *gorm.DB
	reportRepo *repository.ReportRepository
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	flagged    map[int64]struct{}
}

func NewPendingSweepJob(db *gorm.DB, cfg *config.Config) *PendingSweepJob {
	interval := time.Duration(cfg.Business.PendingSweepMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &PendingSweepJob{
		db:         db,
		reportRepo: repository.NewReportRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
		flagged:    make(map[int64]struct{}),
	}
}

func (j *PendingSweepJob) Start(ctx context.Context) {
	log.Println("[PendingSweep] stale order sweep started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[PendingSweep] context cancelled, exiting")
			return
		case <-j.stopCh:
			log.Println("[PendingSweep] stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *PendingSweepJob) Stop() {
	close(j.stopCh)
}

func (j *PendingSweepJob) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.interval)
	stale, err := j.reportRepo.GetStalePending(ctx, cutoff, j.batchSize)
	if err != nil {
		log.Printf("[PendingSweep] failed to scan stale orders: %v", err)
		return
	}
	j.flagged = flagStale(stale, j.flagged, func(order *model.Report) bool {
		return j.emit(ctx, order)
	})
	if len(stale) > 0 {
		log.Printf("[PendingSweep] %d order(s) pending since before %s", len(stale), cutoff.Format(time.RFC3339))
	}
}

// flagStale emits each newly stale order once and returns the set of ids
// flagged so far. The set is rebuilt from the current scan, so an id is
// dropped as soon as its order leaves Pending and the memory stays
// bounded by the batch size.
func flagStale(stale []*model.Report, flagged map[int64]struct{}, emit func(*model.Report) bool) map[int64]struct{} {
	next := make(map[int64]struct{}, len(stale))
	for _, order := range stale {
		if _, done := flagged[order.ID]; done {
			next[order.ID] = struct{}{}
			continue
		}
		if emit(order) {
			next[order.ID] = struct{}{}
		}
	}
	return next
}

func (j *PendingSweepJob) emit(ctx context.Context, order *model.Report) bool {
	payload, err := json.Marshal(StalePendingEvent{
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		ProviderID: order.ProviderID,
		ApiID:      order.ApiID,
		Amount:     order.TotalAmount.String(),
		PendingFor: time.Since(order.CreatedAt).Truncate(time.Second).String(),
	})
	if err != nil {
		log.Printf("[PendingSweep] could not marshal event for order %s: %v", order.OrderID, err)
		return false
	}
	msg := &model.OutboxMessage{
		MessageKey: order.OrderID,
		Topic:      j.cfg.Kafka.Topic.StalePending,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := j.outboxRepo.Create(ctx, j.db, msg); err != nil {
		log.Printf("[PendingSweep] could not enqueue event for order %s: %v", order.OrderID, err)
		return false
	}
	return true
}
