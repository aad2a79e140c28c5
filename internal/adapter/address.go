package adapter

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/types"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ValidateAddress checks the wallet address format for the chain
func ValidateAddress(address string, chain types.ChainID) error {
	valid := false
	switch {
	case chain.IsEVM():
		valid = strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
	case chain == types.ChainSolana:
		valid = isSolanaAddress(address)
	}

	if !valid {
		return apperrors.NewInvalidAddressError(address, chain)
	}
	return nil
}

// isSolanaAddress accepts base58 encoded 32-byte public keys
func isSolanaAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	for _, r := range address {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}
