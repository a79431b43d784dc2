package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"Lucky", "Happy", "Sunny", "Merry", "Jolly",
	"Bright", "Gentle", "Kind", "Cheery", "Sweet",
	"Golden", "Silver", "Cosmic", "Starry", "Breezy",
}

var nouns = []string{
	"Panda", "Otter", "Rabbit", "Fox", "Koala",
	"Penguin", "Kitten", "Puppy", "Hamster", "Dolphin",
	"Clover", "Ribbon", "Present", "Comet", "Maple",
}

// GenerateNickname returns a random display name of the form
// "Adjective_Noun_NNNN" for principals that carry no name.
func GenerateNickname() (string, error) {
	adj, err := pick(len(adjectives))
	if err != nil {
		return "", fmt.Errorf("failed to pick adjective: %w", err)
	}
	noun, err := pick(len(nouns))
	if err != nil {
		return "", fmt.Errorf("failed to pick noun: %w", err)
	}
	suffix, err := pick(10000)
	if err != nil {
		return "", fmt.Errorf("failed to pick suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s_%04d", adjectives[adj], nouns[noun], suffix), nil
}

// DisplayNameOr returns name when non-empty, otherwise a generated nickname
func DisplayNameOr(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	return GenerateNickname()
}

func pick(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
