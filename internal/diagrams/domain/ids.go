package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// NewDiagramID returns a fresh opaque diagram id.
func NewDiagramID() string {
	return uuid.New().String()
}

// NewVersionID generates a human-readable version row id.
// Format: "dver-12345-6789".
func NewVersionID() (string, error) {
	a, err := randInt(10000, 99999)
	if err != nil {
		return "", err
	}
	b, err := randInt(1000, 9999)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("dver-%05d-%04d", a, b), nil
}

func randInt(min, max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}
