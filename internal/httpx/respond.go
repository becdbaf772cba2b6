package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "warehouse-service/internal/kafka"
	"warehouse-service/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the typed core failures onto HTTP codes. Anything
// unrecognized is a 500 with no detail.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		ve  *orders.ValidationError
		ise *orders.InsufficientStockError
		ite *orders.InvalidTransitionError
		nfe *orders.NotFoundError
		pe  *orders.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error()})
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient stock",
			"product_id": ise.ProductID,
			"available":  ise.Available,
			"requested":  ise.Requested,
		})
	case errors.As(err, &ite):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "invalid transition",
			"order_id": ite.OrderID,
			"status":   ite.Current,
		})
	case errors.As(err, &nfe):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": nfe.Error()})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": pe.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// publishEvent wraps a payload in the versioned envelope and hands it to the
// producer. Publishing is best effort and happens only after commit.
func publishEvent(p *kafkax.Producer, service, eventType, traceID string, aggregateID int64, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      service,
		TraceID:       traceID,
		CorrelationID: string(orders.PartitionKey(aggregateID)),
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.TopicFor(eventType), orders.PartitionKey(aggregateID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
