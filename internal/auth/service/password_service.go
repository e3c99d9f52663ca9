package service

import (
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// PasswordService owns password hashing. Hashing happens only through Hash,
// never implicitly on entity saves, so already-hashed values can never be
// hashed twice.
type PasswordService struct{}

func NewPasswordService() *PasswordService {
	return &PasswordService{}
}

func (s *PasswordService) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash. It fails closed:
// a malformed hash or any bcrypt error yields false, never an error in the
// caller's success path.
func (s *PasswordService) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
