package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courtside/backend/internal/checkout"
	"github.com/courtside/backend/internal/gateway"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/internal/tickets"
	"github.com/courtside/backend/pkg/queue"
	"github.com/courtside/backend/pkg/storage"
)

// Processor drains the job queues: reconciliation retries for attempts whose
// payment is captured but whose entitlement write failed, and QR image
// uploads for freshly issued tickets.
type Processor struct {
	checkout *checkout.Service
	attempts *checkout.Repository
	tickets  *tickets.Repository
	api      gateway.API
	s3       *storage.S3
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewProcessor creates a job processor. s3 may be nil when QR storage is not
// configured; QR jobs then fail and land in the DLQ.
func NewProcessor(svc *checkout.Service, attempts *checkout.Repository, ticketRepo *tickets.Repository, api gateway.API, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{checkout: svc, attempts: attempts, tickets: ticketRepo, api: api, s3: s3, queue: q, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeReconcileRetry:
		return p.processReconcileRetry(ctx, job)
	case queue.JobTypeTicketQRUpload:
		return p.processTicketQR(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processReconcileRetry replays reconciliation for an attempt. The payment id
// stored on the attempt was verified at callback time; the gateway is only
// read here, never charged.
func (p *Processor) processReconcileRetry(ctx context.Context, job *queue.Job) error {
	var payload queue.ReconcileRetryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	attempt, err := p.attempts.GetForUser(ctx, payload.AttemptID, uuid.Nil)
	if err != nil {
		return fmt.Errorf("load attempt: %w", err)
	}
	if attempt == nil {
		return fmt.Errorf("attempt not found: %s", payload.AttemptID)
	}
	if attempt.State == models.CheckoutStateSucceeded {
		p.logger.Info("attempt already reconciled", zap.String("attempt_id", attempt.ID.String()))
		return nil
	}
	if attempt.PaymentID == "" {
		return fmt.Errorf("attempt %s has no payment id", attempt.ID)
	}

	payment, err := p.api.FetchPayment(ctx, attempt.PaymentID)
	if err != nil {
		return fmt.Errorf("fetch payment: %w", err)
	}

	if _, err := p.checkout.ReconcileAttempt(ctx, attempt.ID, payment); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	p.logger.Info("reconcile retry succeeded", zap.String("attempt_id", attempt.ID.String()), zap.String("payment_id", attempt.PaymentID))
	return nil
}

// processTicketQR renders the ticket QR payload to PNG and uploads it.
func (p *Processor) processTicketQR(ctx context.Context, job *queue.Job) error {
	var payload queue.TicketQRPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.s3 == nil {
		return fmt.Errorf("qr storage not configured")
	}

	ticket, err := p.tickets.GetByID(ctx, payload.TicketID, payload.UserID)
	if err != nil {
		return fmt.Errorf("load ticket: %w", err)
	}
	if ticket.QRS3Key != "" {
		p.logger.Info("ticket qr already uploaded", zap.String("ticket_id", ticket.ID))
		return nil
	}

	png, err := tickets.RenderQRPNG(ticket)
	if err != nil {
		return err
	}
	key, err := p.s3.UploadTicketQR(ctx, ticket.UserID.String(), ticket.ID, png)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.tickets.SetQRObjectKey(ctx, ticket.ID, key); err != nil {
		return fmt.Errorf("update db: %w", err)
	}
	p.logger.Info("ticket qr uploaded", zap.String("ticket_id", ticket.ID), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, key, err := p.queue.Dequeue(ctx)
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
			if reErr := p.queue.Retry(ctx, job, key); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
