package domain

import "golang.org/x/crypto/bcrypt"

// HashSecret hashes a raw API secret with bcrypt.
func HashSecret(raw string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifySecret reports whether raw matches hash.
func VerifySecret(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
