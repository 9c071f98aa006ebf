package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const codeTTL = 600 * time.Second

var (
	nowFunc = time.Now // mockable

	valueUpperBound = big.NewInt(1000000)

	// errors
	ErrCodeInvalid = errors.New("invalid code")
	ErrCodeExpired = errors.New("code expired")
)

type (
	Repository interface {
		CreateCode(code Code) (Code, error)
		// LatestCode returns the most-recently-issued unconsumed code for
		// (userID, purpose); ErrCodeInvalid when none exists.
		LatestCode(userID string, purpose Purpose) (Code, error)
		// ConsumeCode marks the code consumed. The update must be conditional on
		// consumed=false so concurrent confirms yield exactly one winner;
		// ErrCodeInvalid when the row is missing or already consumed.
		ConsumeCode(id string) error
	}

	// Service mints and consumes time-boxed single-use verification codes.
	Service interface {
		Mint(userID string, purpose Purpose) (Code, error)
		Consume(userID string, purpose Purpose, value string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Mint persists and returns a fresh unconsumed code for out-of-band delivery.
// Previously minted codes for the same (user, purpose) are left untouched;
// they simply stop being the latest.
func (svc *service) Mint(userID string, purpose Purpose) (Code, error) {
	val, err := generateValue()
	if err != nil {
		return Code{}, err
	}
	code := Code{
		ID:       uuid.New().String(),
		UserID:   userID,
		Purpose:  purpose,
		Value:    val,
		IssuedAt: nowFunc().UTC(),
	}
	return svc.repo.CreateCode(code)
}

// Consume validates `value` against the most-recently-issued unconsumed code
// for (userID, purpose) and marks it consumed on success. A second consume of
// the same value fails with ErrCodeInvalid, as does a value matching only an
// older, superseded code.
func (svc *service) Consume(userID string, purpose Purpose, value string) error {
	code, err := svc.repo.LatestCode(userID, purpose)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(code.Value), []byte(value)) == 0 {
		return ErrCodeInvalid
	}
	if code.Expired() {
		return ErrCodeExpired
	}
	return svc.repo.ConsumeCode(code.ID)
}

// generateValue draws a uniformly random zero-padded 6-digit string.
func generateValue() (string, error) {
	n, err := rand.Int(rand.Reader, valueUpperBound)
	if err != nil {
		return "", errors.Wrap(err, "generating code value")
	}
	return fmt.Sprintf("%06d", n), nil
}
