package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "orgkit/pkg/domain-errors"
)

func signedHeader(t *testing.T, ts, secret string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":"))
	mac.Write(body)
	return "ts=" + ts + ";h1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAccepts(t *testing.T) {
	body := []byte(`{"event_type":"subscription.created","data":{}}`)
	header := signedHeader(t, "1671552777", "shh-secret", body)

	require.NoError(t, VerifySignature(header, body, "shh-secret"))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"event_type":"subscription.created"}`)
	header := signedHeader(t, "1671552777", "shh-secret", body)

	err := VerifySignature(header, []byte(`{"event_type":"subscription.canceled"}`), "shh-secret")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	header := signedHeader(t, "1671552777", "right-secret", body)

	err := VerifySignature(header, body, "wrong-secret")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifySignatureRejectsTamperedTimestamp(t *testing.T) {
	body := []byte(`{}`)
	header := signedHeader(t, "1671552777", "shh-secret", body)
	tampered := "ts=9999999999" + header[len("ts=1671552777"):]

	err := VerifySignature(tampered, body, "shh-secret")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifySignatureMalformedHeaders(t *testing.T) {
	body := []byte(`{}`)

	for name, header := range map[string]string{
		"empty":        "",
		"no h1":        "ts=1671552777",
		"no ts":        "h1=deadbeef",
		"no separator": "garbage",
	} {
		t.Run(name, func(t *testing.T) {
			err := VerifySignature(header, body, "secret")
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}

func TestVerifySignatureIgnoresUnknownPairs(t *testing.T) {
	body := []byte(`{"ok":true}`)
	header := signedHeader(t, "1671552777", "secret", body) + ";v=1"

	require.NoError(t, VerifySignature(header, body, "secret"))
}
