package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	dErrors "orgkit/pkg/domain-errors"
)

// SignatureHeader is the webhook signature header name.
const SignatureHeader = "Paddle-Signature"

// VerifySignature checks a webhook signature header of the form
// "ts=<unix>;h1=<hex hmac>" against the raw request body. The signed payload
// is ts + ":" + body, authenticated with HMAC-SHA256 under the shared webhook
// secret. Comparison is constant time.
func VerifySignature(header string, body []byte, secret string) error {
	ts, h1, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(h1)) {
		return dErrors.New(dErrors.CodeUnauthorized, "webhook signature mismatch")
	}
	return nil
}

func parseSignatureHeader(header string) (ts, h1 string, err error) {
	if header == "" {
		return "", "", dErrors.New(dErrors.CodeBadRequest, "missing signature header")
	}
	for _, part := range strings.Split(header, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "h1":
			h1 = value
		}
	}
	if ts == "" || h1 == "" {
		return "", "", dErrors.New(dErrors.CodeBadRequest, "malformed signature header")
	}
	return ts, h1, nil
}
