// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/metrics"
	"github.com/tomtom215/cheerboard/internal/models"
	"github.com/tomtom215/cheerboard/internal/stream"
	"github.com/tomtom215/cheerboard/internal/validation"
)

// SignatureHeader carries the webhook body signature as
// "sha256=<hex HMAC-SHA256>".
const SignatureHeader = "X-Cheerboard-Signature"

const signaturePrefix = "sha256="

// WebhookRequest is the webhook body. It uses the same envelope as the push
// stream.
type WebhookRequest struct {
	ID        string          `json:"id" validate:"required,notblank,max=256"`
	Type      string          `json:"type" validate:"required,eq=challenge_completed"`
	Data      json.RawMessage `json:"data" validate:"required"`
	Timestamp string          `json:"timestamp" validate:"omitempty,rfc3339"`
}

// WebhookResponse reports what happened to an accepted webhook event.
type WebhookResponse struct {
	ID     string         `json:"id"`
	Queued bool           `json:"queued"`
	Issues []stream.Issue `json:"issues,omitempty"`
}

// ChallengeCompletedWebhook ingests a signed challenge_completed event.
// POST /api/v1/webhooks/challenge-completed
//
// Security:
//   - Verifies the HMAC-SHA256 signature when webhook.secret is configured
//   - Rate limited per client IP
//   - Body limited to 1 MiB
func (h *Handler) ChallengeCompletedWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		metrics.WebhookDeliveries.WithLabelValues("method_not_allowed").Inc()
		methodNotAllowed(w, r)
		return
	}

	cfg := h.cfg()
	if cfg != nil && !cfg.Webhook.Enabled {
		metrics.WebhookDeliveries.WithLabelValues("disabled").Inc()
		respondError(w, r, http.StatusNotFound, "WEBHOOKS_DISABLED", "Webhooks are not enabled", nil, nil)
		return
	}
	if h.deps.Ingest == nil {
		unavailable(w, r, "queue")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("invalid").Inc()
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body", nil, err)
		return
	}

	if cfg != nil && cfg.Webhook.Secret != "" {
		if err := verifySignature(body, r.Header.Get(SignatureHeader), cfg.Webhook.Secret); err != nil {
			metrics.WebhookDeliveries.WithLabelValues("unauthorized").Inc()
			logging.Ctx(r.Context()).Warn().Err(err).Str("remote_addr", sanitizeLogValue(r.RemoteAddr)).Msg("Webhook signature rejected")
			// Auth faults stay at the boundary and are not reported.
			respondNotificationError(w, r, models.NewNotificationError(models.ErrorTypeAuth, models.CodeInvalidSignature,
				models.SeverityMedium, err.Error(), h.clk.Now()), nil)
			return
		}
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.rejectInvalid(w, r, models.NewNotificationError(models.ErrorTypeValidation, models.CodeInvalidJSON,
			models.SeverityLow, "webhook body is not valid JSON", h.clk.Now()).WithCause(err), nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		h.rejectInvalid(w, r, models.NewNotificationError(models.ErrorTypeValidation, models.CodeInvalidEvent,
			models.SeverityMedium, apiErr.Message, h.clk.Now()), apiErr.Details)
		return
	}

	now := h.clk.Now()
	msg := models.StreamMessage{ID: req.ID, Type: req.Type, Data: req.Data, Timestamp: req.Timestamp}
	if msg.Timestamp == "" {
		msg.Timestamp = now.UTC().Format(time.RFC3339Nano)
	}
	ev, issues, ok := stream.ParseCompletion(msg, now)
	if !ok {
		h.rejectInvalid(w, r, models.NewNotificationError(models.ErrorTypeValidation, models.CodeInvalidEvent,
			models.SeverityHigh, summarizeIssues(issues), now), map[string]interface{}{"issues": issues})
		return
	}

	queued, err := h.ingest(ev)
	if err != nil {
		nerr := models.NewNotificationError(models.ErrorTypeProcessing, models.CodeHandlerPanic,
			models.SeverityHigh, "webhook event could not be queued", now).WithCause(err)
		h.report(nerr)
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		respondNotificationError(w, r, nerr, nil)
		return
	}

	metrics.WebhookDeliveries.WithLabelValues("accepted").Inc()
	logging.Ctx(r.Context()).Info().
		Str("event_id", sanitizeLogValue(ev.ID)).
		Str("player_id", sanitizeLogValue(ev.PlayerID)).
		Bool("queued", queued).
		Msg("Webhook event accepted")

	respondOK(w, http.StatusAccepted, WebhookResponse{ID: ev.ID, Queued: queued, Issues: issues})
}

func (h *Handler) rejectInvalid(w http.ResponseWriter, r *http.Request, nerr models.NotificationError, details map[string]interface{}) {
	metrics.WebhookDeliveries.WithLabelValues("invalid").Inc()
	h.report(nerr)
	respondNotificationError(w, r, nerr, details)
}

// ingest hands ev to the pipeline, converting a panic into an error.
func (h *Handler) ingest(ev models.ChallengeCompletionEvent) (queued bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("ingest panic: %v", rec)
		}
	}()
	return h.deps.Ingest(ev), nil
}

func (h *Handler) report(nerr models.NotificationError) {
	if h.deps.Recovery != nil {
		h.deps.Recovery.Report(nerr)
	}
}

// verifySignature checks header against the HMAC-SHA256 of body.
func verifySignature(body []byte, header, secret string) error {
	if header == "" {
		return fmt.Errorf("%s header required", SignatureHeader)
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return fmt.Errorf("%s must start with %q", SignatureHeader, signaturePrefix)
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return fmt.Errorf("%s is not hex encoded", SignatureHeader)
	}
	if !hmac.Equal(got, computeSignature(body, secret)) {
		return fmt.Errorf("webhook signature verification failed")
	}
	return nil
}

func computeSignature(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign returns the SignatureHeader value for body.
func Sign(body []byte, secret string) string {
	return signaturePrefix + hex.EncodeToString(computeSignature(body, secret))
}

func summarizeIssues(issues []stream.Issue) string {
	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		if is.Severity.AtLeast(models.SeverityHigh) {
			parts = append(parts, is.Message)
		}
	}
	if len(parts) == 0 {
		return "invalid challenge completion"
	}
	return strings.Join(parts, "; ")
}
