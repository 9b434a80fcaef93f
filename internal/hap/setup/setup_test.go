package setup

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeStringFormatsWithDashes(t *testing.T) {
	code, err := ParseCode("12344321")
	require.NoError(t, err)
	require.Equal(t, "123-44-321", code.String())
	require.Equal(t, "12344321", code.Digits())
}

func TestParseCodeAcceptsDashedForm(t *testing.T) {
	code, err := ParseCode("123-44-321")
	require.NoError(t, err)
	require.Equal(t, "12344321", code.Digits())
}

func TestParseCodeRejectsNonDigit(t *testing.T) {
	_, err := ParseCode("1234432x")
	require.Error(t, err)
}

func TestParseCodeRejectsWrongLength(t *testing.T) {
	_, err := ParseCode("1234")
	require.Error(t, err)
}

func TestGenerateCodeNeverProducesForbiddenCodes(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode(rand.Reader)
		require.NoError(t, err)
		digits := code.Digits()
		require.False(t, isRepeatingDigit(digits))
		require.False(t, invalidCodes[digits])
	}
}

func TestParseIDRejectsLowercase(t *testing.T) {
	_, err := ParseID("ab12")
	require.Error(t, err)
}

func TestParseIDAcceptsUppercaseAlnum(t *testing.T) {
	id, err := ParseID("A1B2")
	require.NoError(t, err)
	require.Equal(t, "A1B2", id.String())
}

func TestGenerateIDProducesValidID(t *testing.T) {
	id, err := GenerateID(rand.Reader)
	require.NoError(t, err)
	_, err = ParseID(id.String())
	require.NoError(t, err)
}

func TestPayloadHasXHMPrefixAndLength(t *testing.T) {
	code, err := ParseCode("12344321")
	require.NoError(t, err)
	id, err := ParseID("A1B2")
	require.NoError(t, err)

	payload, err := Payload(code, id, 5, PairingFlagIP)
	require.NoError(t, err)
	require.True(t, len(payload) > len("X-HM://"))
	require.Equal(t, "X-HM://", payload[:7])
	require.Equal(t, "A1B2", payload[len(payload)-4:])
}

func TestNFCPayloadWithoutDisplayIsRawDigits(t *testing.T) {
	code, err := ParseCode("12344321")
	require.NoError(t, err)
	id, err := ParseID("A1B2")
	require.NoError(t, err)

	payload, err := NFCPayload(code, id, 5, PairingFlagNFC, false)
	require.NoError(t, err)
	require.Equal(t, "12344321", payload)
}

func TestNFCPayloadWithDisplayMatchesQRPayload(t *testing.T) {
	code, err := ParseCode("12344321")
	require.NoError(t, err)
	id, err := ParseID("A1B2")
	require.NoError(t, err)

	qr, err := Payload(code, id, 5, PairingFlagIP)
	require.NoError(t, err)
	nfc, err := NFCPayload(code, id, 5, PairingFlagIP, true)
	require.NoError(t, err)
	require.Equal(t, qr, nfc)
}
