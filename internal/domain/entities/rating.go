package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// MaxReviewLength bounds the free-text portion of a rating.
const MaxReviewLength = 500

// FlagReason classifies why a rating was flagged for moderation.
type FlagReason string

const (
	FlagReasonNone          FlagReason = "none"
	FlagReasonDuplicateText FlagReason = "duplicate-text"
	FlagReasonSpam          FlagReason = "spam"
	FlagReasonInappropriate FlagReason = "inappropriate"
	FlagReasonFake          FlagReason = "fake"
)

// Rating is a single buyer-authored evaluation of a seller, bound to exactly
// one completed booking. SubmitterNetID is kept for rate limiting only and is
// never serialized to clients.
type Rating struct {
	ID        string `json:"id" db:"id"`
	BookingID string `json:"booking_id" db:"booking_id"`
	SellerID  string `json:"seller_id" db:"seller_id"`
	BuyerID   string `json:"buyer_id" db:"buyer_id"`

	Stars       int        `json:"stars" db:"stars"`
	Review      string     `json:"review" db:"review"`
	Fingerprint string     `json:"-" db:"fingerprint"`
	IsFlagged   bool       `json:"is_flagged" db:"is_flagged"`
	FlagReason  FlagReason `json:"flag_reason" db:"flag_reason"`

	SubmitterNetID string `json:"-" db:"submitter_net_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeReview case-folds, trims, and collapses internal whitespace so
// trivially restyled copies of the same text normalize identically.
func NormalizeReview(text string) string {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return ""
	}
	return strings.Join(strings.Fields(trimmed), " ")
}

// ReviewFingerprint computes the normalized content hash used for
// near-duplicate detection. It is not an identity and enforces no uniqueness.
func ReviewFingerprint(text string) string {
	hash := sha256.Sum256([]byte(NormalizeReview(text)))
	return hex.EncodeToString(hash[:])
}
