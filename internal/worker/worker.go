package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/internal/models"
	"github.com/promostack/coupon-backend/internal/redemptions"
	"github.com/promostack/coupon-backend/pkg/queue"
	"github.com/promostack/coupon-backend/pkg/storage"
)

// RedemptionArchiver processes redemption archive jobs: load the row, marshal
// it to JSON, upload to S3, update DB.
type RedemptionArchiver struct {
	repo   *redemptions.Repository
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewRedemptionArchiver creates a redemption archive processor.
func NewRedemptionArchiver(repo *redemptions.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *RedemptionArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedemptionArchiver{repo: repo, s3: s3, queue: q, logger: logger}
}

// Process executes one redemption archive job.
func (p *RedemptionArchiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRedemptionArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RedemptionArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	red, err := p.repo.GetByID(ctx, payload.RedemptionID)
	if err != nil {
		return fmt.Errorf("redemption not found: %s", payload.RedemptionID)
	}
	if red.Status == models.RedemptionStatusArchived {
		p.logger.Info("redemption already archived", zap.String("redemption_id", red.ID.String()))
		return nil
	}

	body, err := json.Marshal(red)
	if err != nil {
		return fmt.Errorf("marshal redemption: %w", err)
	}

	key := storage.RedemptionKey(red.CouponCode, red.ID.String())
	url, err := p.s3.Upload(ctx, key, storage.ArchiveContentType, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.repo.UpdateArchiveResult(ctx, red.ID, key, url); err != nil {
		p.logger.Error("update archive result failed", zap.Error(err), zap.String("redemption_id", red.ID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("redemption archived", zap.String("redemption_id", red.ID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. Jobs that
// exhaust their retries are moved to the DLQ and the row is marked failed.
func (p *RedemptionArchiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("redemption worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			if job.Attempt >= queue.MaxRetries {
				p.markFailed(ctx, job)
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

func (p *RedemptionArchiver) markFailed(ctx context.Context, job *queue.Job) {
	var payload queue.RedemptionArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return
	}
	if err := p.repo.MarkArchiveFailed(ctx, payload.RedemptionID); err != nil {
		p.logger.Error("mark archive failed errored", zap.Error(err), zap.String("redemption_id", payload.RedemptionID.String()))
	}
}
