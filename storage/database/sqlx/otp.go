package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/coffee3333/erudite/core/otp"
)

type codeRow struct {
	ID       string       `db:"id"`
	UserID   string       `db:"user_id"`
	Purpose  otp.Purpose  `db:"purpose"`
	Value    string       `db:"value"`
	IssuedAt sql.NullTime `db:"issued_at"`
	IsUsed   bool         `db:"is_used"`
}

type codeRepository struct {
	db *sqlx.DB
}

var _ otp.Repository = (*codeRepository)(nil) // interface compliance check

func NewCodeRepository(db *sqlx.DB) otp.Repository {
	return &codeRepository{db: db}
}

func (repo codeRepository) unpack(row codeRow) otp.Code {
	return otp.Code{
		ID:       row.ID,
		UserID:   row.UserID,
		Purpose:  row.Purpose,
		Value:    row.Value,
		IssuedAt: row.IssuedAt.Time,
		Consumed: row.IsUsed,
	}
}

func (repo codeRepository) CreateCode(code otp.Code) (otp.Code, error) {
	_, err := repo.db.Exec(`
		INSERT INTO verification_code (id, user_id, purpose, value, issued_at, is_used)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		code.ID, code.UserID, code.Purpose, code.Value, code.IssuedAt.UTC(), code.Consumed,
	)
	if err != nil {
		return otp.Code{}, errors.Wrap(err, "inserting verification code")
	}
	return code, nil
}

func (repo codeRepository) LatestCode(userID string, purpose otp.Purpose) (otp.Code, error) {
	var row codeRow
	err := repo.db.Get(&row, `
		SELECT * FROM verification_code
		WHERE user_id = $1 AND purpose = $2 AND is_used = FALSE
		ORDER BY issued_at DESC
		LIMIT 1`,
		userID, purpose,
	)
	if err == sql.ErrNoRows {
		return otp.Code{}, otp.ErrCodeInvalid
	}
	if err != nil {
		return otp.Code{}, errors.Wrap(err, "finding verification code")
	}
	return repo.unpack(row), nil
}

// ConsumeCode marks a code used. The conditional update makes consumption a
// single atomic step so concurrent consumers cannot both succeed.
func (repo codeRepository) ConsumeCode(id string) error {
	res, err := repo.db.Exec(`UPDATE verification_code SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, id)
	if err != nil {
		return errors.Wrap(err, "consuming verification code")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return otp.ErrCodeInvalid
	}
	return nil
}
