package nations

import (
	"errors"
	"time"

	"github.com/small-frappuccino/ally/pkg/storage"
)

// VerificationWindow is how long a successful verification is trusted before
// the member has to re-verify. This is a trust window on the identity
// binding, independent of how fresh the nation data is.
const VerificationWindow = 15 * 24 * time.Hour

// ErrMissingFilter is returned when CheckVerification is called without a
// nation id or a Discord username. That is a programmer error, never
// silently defaulted.
var ErrMissingFilter = errors.New("verification filter requires a nation id or a discord username")

// VerificationFilter selects a verification record by exactly one of its two
// identities. When both are set, the nation id wins.
type VerificationFilter struct {
	NationID        int
	DiscordUsername string
}

// VerificationStatus reports whether an identity is bound to a nation and
// whether that binding is still inside its trust window.
type VerificationStatus struct {
	Verified bool
	Expired  bool
	NationID int
}

// CheckVerification looks up a verification record by the supplied filter
// field. When both fields are set the nation id takes precedence and the
// username is ignored. An absent record yields {Verified: false}; a present
// but expired record yields {Verified: true, Expired: true} with the nation
// id so callers can prompt a re-verification.
func (s *Service) CheckVerification(filter VerificationFilter) (VerificationStatus, error) {
	var rec *storage.Verification
	var err error
	switch {
	case filter.NationID != 0:
		rec, err = s.store.VerificationByNationID(filter.NationID)
	case filter.DiscordUsername != "":
		rec, err = s.store.VerificationByUsername(filter.DiscordUsername)
	default:
		return VerificationStatus{}, ErrMissingFilter
	}
	if err != nil {
		return VerificationStatus{}, err
	}
	if rec == nil {
		return VerificationStatus{}, nil
	}
	if rec.ExpiresAt.Before(s.now()) {
		return VerificationStatus{Verified: true, Expired: true, NationID: rec.NationID}, nil
	}
	return VerificationStatus{Verified: true, Expired: false, NationID: rec.NationID}, nil
}

// RecordVerification binds a Discord username to a nation with a fresh trust
// window. Callers pair it with a forced nation refresh so the stored nation
// data and the verification stay correlated.
func (s *Service) RecordVerification(nationID int, discordUsername string) error {
	now := s.now()
	return s.store.UpsertVerification(&storage.Verification{
		NationID:        nationID,
		DiscordUsername: discordUsername,
		ExpiresAt:       now.Add(VerificationWindow),
		VerifiedAt:      now,
	})
}
