package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJobEnvelopeRoundTrip(t *testing.T) {
	attemptID := uuid.New()
	payload, err := json.Marshal(ReconcileRetryPayload{AttemptID: attemptID})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	job := Job{
		ID:        uuid.NewString(),
		Type:      JobTypeReconcileRetry,
		Payload:   payload,
		Attempt:   1,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	raw, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	var got Job
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if got.ID != job.ID || got.Type != job.Type || got.Attempt != job.Attempt {
		t.Fatalf("envelope changed in transit: %+v", got)
	}

	var p ReconcileRetryPayload
	if err := json.Unmarshal(got.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.AttemptID != attemptID {
		t.Fatalf("attempt id = %s, want %s", p.AttemptID, attemptID)
	}
}

func TestTicketQRPayloadCarriesOwner(t *testing.T) {
	userID := uuid.New()
	payload, err := json.Marshal(TicketQRPayload{TicketID: "TKT-20260901-ABC123", UserID: userID})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var p TicketQRPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.TicketID != "TKT-20260901-ABC123" || p.UserID != userID {
		t.Fatalf("payload changed in transit: %+v", p)
	}
}
