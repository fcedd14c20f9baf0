/*

This file verifies Substrate-style (SS58 address, sr25519 keypair)
signatures over a voter's submitted message, the scheme used by voters
bound directly to a subnet account.

*/

package signer

import (
	"encoding/hex"
	"fmt"
	"strings"

	subkey "github.com/vedhavyas/go-subkey/v2"
	"github.com/vedhavyas/go-subkey/v2/sr25519"
)

// substrateSS58Prefix is the network id this subnet's addresses are
// encoded with.
const substrateSS58Prefix = 42

// rawBytesMarkerHex is the two-byte 0x01 0x01 marker (as four hex chars)
// some Substrate wallets prefix onto a signature when they signed the
// raw bytes of the message rather than its string form.
const rawBytesMarkerHex = "0101"

// VerifySubstrate reports whether sigHex (hex-encoded, with or without a
// 0x prefix) is a valid sr25519 signature by address over message. Accepts
// both plain signatures and raw-bytes-prefixed ones: when sigHex begins
// with the 0101 marker, the marker is stripped and the remainder must
// decode to exactly 64 bytes.
func VerifySubstrate(address, message, sigHex string) (bool, error) {
	sigHex = strings.TrimPrefix(sigHex, "0x")

	var sig []byte
	var err error
	if strings.HasPrefix(sigHex, rawBytesMarkerHex) {
		sig, err = hex.DecodeString(sigHex[len(rawBytesMarkerHex):])
		if err != nil {
			return false, fmt.Errorf("invalid signature encoding: %w", err)
		}
		if len(sig) != 64 {
			return false, fmt.Errorf("raw-bytes-prefixed signature must decode to exactly 64 bytes, got %d", len(sig))
		}
	} else {
		sig, err = hex.DecodeString(sigHex)
		if err != nil {
			return false, fmt.Errorf("invalid signature encoding: %w", err)
		}
	}

	network, pubKeyBytes, err := subkey.SS58Decode(address)
	if err != nil {
		return false, fmt.Errorf("invalid SS58 address: %w", err)
	}
	if network != substrateSS58Prefix {
		return false, fmt.Errorf("SS58 address uses network prefix %d, want %d", network, substrateSS58Prefix)
	}

	scheme := sr25519.Scheme{}
	keyPair, err := scheme.FromPublicKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("invalid sr25519 public key: %w", err)
	}

	return keyPair.Verify([]byte(message), sig), nil
}

// decodeHex strips an optional 0x prefix before hex-decoding.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}
