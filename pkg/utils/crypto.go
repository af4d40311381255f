package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// GenerateID generates a random hex ID
func GenerateID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// IsValidAddress checks if a string is a valid Ethereum-style address
func IsValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// ChecksumAddress converts a hex address literal to its checksummed form.
// Returns a validation error for anything that is not an address literal.
func ChecksumAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, NewAppError(ErrCodeValidation,
			"Invalid contract address", address)
	}
	return common.HexToAddress(address), nil
}

// NormalizeAddress normalizes an address to lowercase with 0x prefix
func NormalizeAddress(address string) string {
	if !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	return strings.ToLower(address)
}

// FormatBlockNumber formats a block number as a hex quantity
func FormatBlockNumber(blockNumber uint64) string {
	return fmt.Sprintf("0x%x", blockNumber)
}

// ParseBlockNumber parses a hex block number string
func ParseBlockNumber(blockNumberHex string) (uint64, error) {
	blockNumberHex = strings.TrimPrefix(blockNumberHex, "0x")

	var blockNumber uint64
	_, err := fmt.Sscanf(blockNumberHex, "%x", &blockNumber)
	if err != nil {
		return 0, err
	}

	return blockNumber, nil
}
