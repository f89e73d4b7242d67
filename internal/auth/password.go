package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword stores an inspector's login password as a bcrypt hash. cost
// comes from AUTH_BCRYPT_COST; tests pass bcrypt.MinCost to stay fast.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword checks a login attempt against the stored hash and
// returns bcrypt.ErrMismatchedHashAndPassword on a wrong password.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
