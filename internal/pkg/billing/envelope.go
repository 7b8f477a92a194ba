package billing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var envelopeValidator = validator.New()

// occurred_at must fall between minOccurredAt and the receive time plus
// maxOccurredAtSkew, otherwise the event is treated as malformed.
var minOccurredAt = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

const maxOccurredAtSkew = 24 * time.Hour

// parseEnvelope decodes and validates a webhook body. On failure the partially
// decoded envelope is still returned so the event can be keyed by its id.
// OccurredAt is normalised to UTC microseconds, the precision it is stored at.
func parseEnvelope(body []byte, receivedAt time.Time) (*Envelope, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	env.EventID = strings.TrimSpace(env.EventID)
	env.EventType = strings.TrimSpace(env.EventType)
	env.SubscriptionID = strings.TrimSpace(env.SubscriptionID)
	if err := envelopeValidator.Struct(&env); err != nil {
		return &env, fmt.Errorf("validate envelope: %w", err)
	}
	if env.OccurredAt != nil && !env.OccurredAt.IsZero() {
		at := env.OccurredAt.UTC().Truncate(time.Microsecond)
		if at.Before(minOccurredAt) || at.After(receivedAt.Add(maxOccurredAtSkew)) {
			return &env, fmt.Errorf("occurred_at %s out of range", at.Format(time.RFC3339))
		}
		env.OccurredAt = &at
	}
	return &env, nil
}

// payloadText makes a raw body safe for a utf8mb4 text column.
func payloadText(body []byte) string {
	if utf8.Valid(body) {
		return string(body)
	}
	return strings.ToValidUTF8(string(body), "\uFFFD")
}

// fallbackEventID keys payloads that carry no usable event id.
func fallbackEventID(body []byte) string {
	sum := sha256.Sum256(body)
	return "hash:" + hex.EncodeToString(sum[:])
}
