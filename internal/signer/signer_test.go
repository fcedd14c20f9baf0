package signer

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedhavyas/go-subkey/v2/sr25519"
)

func TestIsEVMAddress(t *testing.T) {
	assert.True(t, IsEVMAddress("0x000000000000000000000000000000000000dEaD"))
	assert.False(t, IsEVMAddress("5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX"))
	assert.False(t, IsEVMAddress("0xshort"))
}

func TestVerifyEVMRejectsMalformedSignature(t *testing.T) {
	ok, err := VerifyEVM("0x0000000000000000000000000000000000dEaD", "hello", "0xdead")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestVerifySubstrateRejectsBadAddress(t *testing.T) {
	ok, err := VerifySubstrate("not-an-ss58-address", "hello", "0x00")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestVerifySubstrateAcceptsPlainSignature(t *testing.T) {
	scheme := sr25519.Scheme{}
	kp, err := scheme.Generate()
	require.NoError(t, err)

	message := "pool1,5000;pool2,5000|100"
	sig, err := kp.Sign([]byte(message))
	require.NoError(t, err)

	address := kp.SS58Address(substrateSS58Prefix)
	ok, err := VerifySubstrate(address, message, "0x"+hex.EncodeToString(sig))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySubstrateAcceptsRawBytesPrefixedSignature(t *testing.T) {
	scheme := sr25519.Scheme{}
	kp, err := scheme.Generate()
	require.NoError(t, err)

	message := "pool1,5000;pool2,5000|100"
	sig, err := kp.Sign([]byte(message))
	require.NoError(t, err)
	require.Len(t, sig, 64)

	address := kp.SS58Address(substrateSS58Prefix)
	sigHex := "0x" + rawBytesMarkerHex + hex.EncodeToString(sig)
	ok, err := VerifySubstrate(address, message, sigHex)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySubstrateRawBytesPrefixedRejectsWrongLength(t *testing.T) {
	scheme := sr25519.Scheme{}
	kp, err := scheme.Generate()
	require.NoError(t, err)

	address := kp.SS58Address(substrateSS58Prefix)
	sigHex := "0x" + rawBytesMarkerHex + hex.EncodeToString([]byte{1, 2, 3})
	ok, err := VerifySubstrate(address, "hello", sigHex)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestVerifyEVMAcceptsValidSignature(t *testing.T) {
	privKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	message := "0xabc...|0xdef...|5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX|100"
	hash := personalSignHash(message)
	sig, err := crypto.Sign(hash, privKey)
	require.NoError(t, err)
	sig[64] += 27 // mimic personal_sign's 27/28 recovery-id convention

	address := crypto.PubkeyToAddress(privKey.PublicKey).Hex()
	ok, err := VerifyEVM(address, message, "0x"+hex.EncodeToString(sig))
	require.NoError(t, err)
	assert.True(t, ok)
}
