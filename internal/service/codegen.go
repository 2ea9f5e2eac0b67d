package service

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// CodeGenerator produces the secret part of a verification code.
type CodeGenerator interface {
	Generate() (string, error)
}

type randomCodeGenerator struct {
	alphabet []rune
	length   int
}

// NewRandomCodeGenerator draws length characters uniformly from alphabet
// using crypto/rand.
func NewRandomCodeGenerator(alphabet string, length int) (CodeGenerator, error) {
	if length <= 0 {
		return nil, errors.New("code length must be positive")
	}
	runes := []rune(alphabet)
	if len(runes) == 0 {
		return nil, errors.New("code alphabet must not be empty")
	}
	return &randomCodeGenerator{alphabet: runes, length: length}, nil
}

func (g *randomCodeGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(g.alphabet)))
	out := make([]rune, g.length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = g.alphabet[n.Int64()]
	}
	return string(out), nil
}
