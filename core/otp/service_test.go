package otp

import (
	"regexp"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeRepository implements Repository in memory for tests.
type fakeRepository struct {
	mu    sync.Mutex
	codes []Code
	pk    int
}

func (repo *fakeRepository) CreateCode(code Code) (Code, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.pk++
	code.ID = strconv.Itoa(repo.pk)
	repo.codes = append(repo.codes, code)
	return code, nil
}

func (repo *fakeRepository) LatestCode(userID string, purpose Purpose) (Code, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	matches := make([]Code, 0, len(repo.codes))
	for _, c := range repo.codes {
		if c.UserID == userID && c.Purpose == purpose && !c.Consumed {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return Code{}, ErrCodeInvalid
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].IssuedAt.After(matches[j].IssuedAt) })
	return matches[0], nil
}

func (repo *fakeRepository) ConsumeCode(id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for i, c := range repo.codes {
		if c.ID == id && !c.Consumed {
			repo.codes[i].Consumed = true
			return nil
		}
	}
	return ErrCodeInvalid
}

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

func TestMint(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	code, err := svc.Mint("42", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if !sixDigits.MatchString(code.Value) {
		t.Errorf("Mint() value = %q; want exactly 6 ASCII digits", code.Value)
	}
	if code.Consumed {
		t.Error("Mint() returned a consumed code")
	}
	if code.IssuedAt.IsZero() {
		t.Error("Mint() did not set IssuedAt")
	}

	// duplicate values across mints are allowed; a second mint must not fail
	if _, err := svc.Mint("42", PurposePasswordReset); err != nil {
		t.Fatalf("second Mint() error = %v", err)
	}
	if len(repo.codes) != 2 {
		t.Errorf("persisted rows = %d; want 2 (old codes are kept)", len(repo.codes))
	}
}

func TestConsumeValidityWindow(t *testing.T) {
	defer func() { nowFunc = time.Now }()

	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{name: "fresh", age: 0},
		{name: "just inside window", age: 599 * time.Second},
		{name: "exact boundary is expired", age: 600 * time.Second, wantErr: ErrCodeExpired},
		{name: "outside window", age: 601 * time.Second, wantErr: ErrCodeExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(fakeRepository)
			svc := NewService(repo)

			nowFunc = time.Now
			code, err := svc.Mint("42", PurposeEmailVerify)
			if err != nil {
				t.Fatalf("Mint() error = %v", err)
			}
			nowFunc = func() time.Time { return time.Now().Add(tt.age) }

			if err := svc.Consume("42", PurposeEmailVerify, code.Value); err != tt.wantErr {
				t.Errorf("Consume() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConsumeSingleUse(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	code, err := svc.Mint("42", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if err := svc.Consume("42", PurposePasswordReset, code.Value); err != nil {
		t.Fatalf("first Consume() error = %v", err)
	}
	if err := svc.Consume("42", PurposePasswordReset, code.Value); err != ErrCodeInvalid {
		t.Errorf("second Consume() error = %v; want ErrCodeInvalid", err)
	}
}

func TestConsumePicksLatest(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	older, err := svc.Mint("42", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	// make sure the next code is strictly newer and has a different value
	repo.mu.Lock()
	repo.codes[0].IssuedAt = repo.codes[0].IssuedAt.Add(-time.Minute)
	repo.codes[0].Value = "000001"
	older.Value = "000001"
	repo.mu.Unlock()

	newer, err := svc.Mint("42", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	repo.mu.Lock()
	repo.codes[1].Value = "000002"
	newer.Value = "000002"
	repo.mu.Unlock()

	// the superseded code no longer matches even though its row is unconsumed
	if err := svc.Consume("42", PurposePasswordReset, older.Value); err != ErrCodeInvalid {
		t.Errorf("Consume(older) error = %v; want ErrCodeInvalid", err)
	}
	if err := svc.Consume("42", PurposePasswordReset, newer.Value); err != nil {
		t.Errorf("Consume(newer) error = %v", err)
	}
}

func TestConsumeScoping(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	code, err := svc.Mint("42", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	// same value, wrong purpose
	if err := svc.Consume("42", PurposeEmailVerify, code.Value); err != ErrCodeInvalid {
		t.Errorf("Consume(wrong purpose) error = %v; want ErrCodeInvalid", err)
	}
	// same value, wrong user
	if err := svc.Consume("7", PurposePasswordReset, code.Value); err != ErrCodeInvalid {
		t.Errorf("Consume(wrong user) error = %v; want ErrCodeInvalid", err)
	}
	// correct scope still works afterwards
	if err := svc.Consume("42", PurposePasswordReset, code.Value); err != nil {
		t.Errorf("Consume() error = %v", err)
	}
}
