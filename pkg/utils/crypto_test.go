package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	id1, err := GenerateID()
	require.NoError(t, err)
	assert.Len(t, id1, 32)

	id2, err := GenerateID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0x1234567890123456789012345678901234567890"))
	assert.True(t, IsValidAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"))
	assert.True(t, IsValidAddress("1234567890123456789012345678901234567890"))

	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("0x1234"))
	assert.False(t, IsValidAddress("0xZZ34567890123456789012345678901234567890"))
}

func TestChecksumAddress(t *testing.T) {
	addr, err := ChecksumAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	require.NoError(t, err)
	assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", addr.Hex())

	_, err = ChecksumAddress("not-an-address")
	require.Error(t, err)
	assert.True(t, IsAppErrorCode(err, ErrCodeValidation))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress("0xABCDEF"))
	assert.Equal(t, "0xabcdef", NormalizeAddress("ABCDEF"))
}

func TestFormatAndParseBlockNumber(t *testing.T) {
	assert.Equal(t, "0x0", FormatBlockNumber(0))
	assert.Equal(t, "0x10", FormatBlockNumber(16))
	assert.Equal(t, "0x2710", FormatBlockNumber(10000))

	n, err := ParseBlockNumber("0x2710")
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), n)

	n, err = ParseBlockNumber("ff")
	require.NoError(t, err)
	assert.Equal(t, uint64(255), n)

	_, err = ParseBlockNumber("0xnope")
	assert.Error(t, err)
}

func TestAppErrorFormatting(t *testing.T) {
	err := NewAppError(ErrCodeConnection, "Failed to dial endpoint", "connection refused")
	assert.Equal(t, "CONNECTION_ERROR: Failed to dial endpoint (connection refused)", err.Error())
	assert.NotEmpty(t, err.File)

	bare := NewAppError(ErrCodeInternal, "Something broke")
	assert.Equal(t, "INTERNAL_ERROR: Something broke", bare.Error())

	assert.True(t, IsAppErrorCode(err, ErrCodeConnection))
	assert.False(t, IsAppErrorCode(err, ErrCodeInternal))
	assert.False(t, IsAppErrorCode(nil, ErrCodeConnection))
}
