package dummydb

import (
	"github.com/coffee3333/erudite/core/otp"
)

type codeRepository struct {
	db *codeTable
}

var _ otp.Repository = (*codeRepository)(nil) // interface compliance check

func NewCodeRepository(db *DB) otp.Repository {
	return &codeRepository{db: db.code}
}

func (repo *codeRepository) CreateCode(code otp.Code) (otp.Code, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[code.ID] = &code
	return code, nil
}

func (repo *codeRepository) LatestCode(userID string, purpose otp.Purpose) (otp.Code, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *otp.Code
	for _, code := range repo.db.table {
		if code.UserID != userID || code.Purpose != purpose || code.Consumed {
			continue
		}
		if latest == nil || code.IssuedAt.After(latest.IssuedAt) {
			latest = code
		}
	}
	if latest == nil {
		return otp.Code{}, otp.ErrCodeInvalid
	}
	return *latest, nil
}

func (repo *codeRepository) ConsumeCode(id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	code, ok := repo.db.table[id]
	if !ok || code.Consumed {
		return otp.ErrCodeInvalid
	}
	code.Consumed = true
	return nil
}
