// File: internal/verify/signature.go
package verify

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TopicOf derives the topic0 identifier for a Solidity event signature
// like Transfer(address,address,uint256). The signature is hashed exactly
// as given: case-sensitive, no normalization, no whitespace trimming.
// A malformed signature hashes to a topic that matches nothing on chain;
// syntactic validation is the caller's job.
func TopicOf(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}
