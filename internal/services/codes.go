package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const (
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeLength       = 8
	maxCodeAttempts  = 5
	minCustomCodeLen = 4
	maxCustomCodeLen = 32
)

var customCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CodeGenerator produces candidate short codes
type CodeGenerator func() (string, error)

// RandomCode draws codeLength symbols uniformly from the 62-symbol alphabet
func RandomCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

func validateCustomCode(code string) error {
	if len(code) < minCustomCodeLen || len(code) > maxCustomCodeLen {
		return fmt.Errorf("custom code must be %d-%d characters", minCustomCodeLen, maxCustomCodeLen)
	}
	if !customCodePattern.MatchString(code) {
		return fmt.Errorf("custom code may only contain letters, digits, '_' and '-'")
	}
	return nil
}
