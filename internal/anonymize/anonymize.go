// Package anonymize provides irreversible hashing and partial masking for
// contact identities and collected personal data.
//
// Durable records never hold a raw identity: lookups use the salted hash,
// human display uses the masked form. Flow ids are derived from the hash so
// they are unguessable and not reversible to the identity.
package anonymize

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/augustodasneves/supportagent/internal/util"
)

// Anonymizer hashes and masks personal data with a configured salt.
type Anonymizer struct {
	salt string
}

// New creates an Anonymizer with the given salt. An empty salt is accepted
// but callers should supply one from configuration in production.
func New(salt string) *Anonymizer {
	return &Anonymizer{salt: salt}
}

// Hash returns the irreversible salted SHA-256 of data, base64-encoded.
func (a *Anonymizer) Hash(data string) string {
	sum := sha256.Sum256([]byte(data + a.salt))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// NewFlowID mints a flow id for the given identity. The id folds in a
// timestamp and random component before hashing, so two flows for the same
// identity get distinct ids and neither reveals the identity.
func (a *Anonymizer) NewFlowID(identity string) string {
	seed := fmt.Sprintf("%s_%d_%s", identity, time.Now().UnixMilli(), util.GenerateRandomHex(8))
	sum := sha256.Sum256([]byte(seed + a.salt))
	return fmt.Sprintf("%x", sum)[:20]
}

// MaskPhone redacts all but the last four digits of a phone number.
func MaskPhone(phone string) string {
	if strings.TrimSpace(phone) == "" || len(phone) < 4 {
		return "****"
	}
	visible := phone[len(phone)-4:]
	return strings.Repeat("*", len(phone)-4) + visible
}

// MaskEmail redacts the local part of an email past its first two characters,
// keeping the domain for display.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if strings.TrimSpace(email) == "" || at <= 0 {
		return "****@****.***"
	}
	local, domain := email[:at], email[at+1:]
	visible := local
	if len(local) > 2 {
		visible = local[:2]
	}
	masked := visible + strings.Repeat("*", max(0, len(local)-2))
	return masked + "@" + domain
}

// MaskCollectedData applies field-specific masking to a collected-data map.
// Phone and email values are masked; other fields pass through unchanged.
// The input map is not modified.
func MaskCollectedData(data map[string]string) map[string]string {
	masked := make(map[string]string, len(data))
	for key, value := range data {
		switch key {
		case models.FieldPhone:
			masked[key] = MaskPhone(value)
		case models.FieldEmail:
			masked[key] = MaskEmail(value)
		default:
			masked[key] = value
		}
	}
	return masked
}
