/*

This file verifies EVM-style personal_sign signatures, the scheme used
by voters who bind an external liquidity-provider account rather than
voting directly from a Substrate account.

*/

package signer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifyEVM reports whether sigHex is a valid personal_sign signature by
// address over message. The comparison is case-insensitive: EVM addresses
// are not checksum-sensitive for equality.
func VerifyEVM(address, message, sigHex string) (bool, error) {
	sig, err := decodeHex(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != 65 {
		return false, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	// personal_sign signatures encode recovery id as 27/28; ecrecover
	// expects it in [0, 1].
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := personalSignHash(message)

	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return false, fmt.Errorf("failed to recover public key: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	claimed := common.HexToAddress(address)

	return strings.EqualFold(recovered.Hex(), claimed.Hex()), nil
}

// personalSignHash reproduces the Ethereum personal_sign prefix hash:
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func personalSignHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}
