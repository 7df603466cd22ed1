package session

import "time"

// Revocation reasons
const (
	ReasonRotated     = "rotated"
	ReasonReuse       = "reuse_detected"
	ReasonLogout      = "logout"
	ReasonPasswordSet = "password_reset"
	ReasonSuspended   = "user_suspended"
)

// Session is one issued refresh credential. Only the SHA-256 hash of the token
// is stored. Active -> revoked is the only transition.
type Session struct {
	ID           string     `json:"id" bson:"_id"`
	TokenHash    string     `json:"-" bson:"token_hash"`
	TokenID      string     `json:"tokenId" bson:"token_id"`
	UserID       string     `json:"userId" bson:"user_id"`
	ExpiresAt    time.Time  `json:"expiresAt" bson:"expires_at"`
	IsRevoked    bool       `json:"isRevoked" bson:"is_revoked"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty" bson:"revoked_at,omitempty"`
	RevokeReason string     `json:"revokeReason,omitempty" bson:"revoke_reason,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty" bson:"user_agent,omitempty"`
	IPAddress    string     `json:"ipAddress,omitempty" bson:"ip_address,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" bson:"created_at"`
}

// IsActive reports whether the record can still be redeemed at now.
func (s *Session) IsActive(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	c := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}
