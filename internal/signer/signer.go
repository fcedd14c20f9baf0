/*

This file dispatches signature verification to the Substrate or EVM
scheme based on the address's shape, so callers don't need to know which
chain family a given voter or external account belongs to.

*/

package signer

import "strings"

// Verify checks a message signature against address, auto-detecting
// whether address is an EVM (0x-prefixed, 40 hex chars) or Substrate
// (SS58) account.
func Verify(address, message, sigHex string) (bool, error) {
	if IsEVMAddress(address) {
		return VerifyEVM(address, message, sigHex)
	}
	return VerifySubstrate(address, message, sigHex)
}

// IsEVMAddress reports whether address looks like a 0x-prefixed EVM
// address rather than an SS58-encoded Substrate address.
func IsEVMAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && len(address) == 42
}
