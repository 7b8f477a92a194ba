package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifyWebhookSignature checks an HMAC-SHA256 signature over the raw payload.
// The header may be plain hex or "sha256=<hex>". Every configured secret is
// tried so secrets can be rotated without dropping deliveries.
func VerifyWebhookSignature(payload []byte, signatureHeader string, secrets ...string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if len(sig) > len(signaturePrefix) && strings.EqualFold(sig[:len(signaturePrefix)], signaturePrefix) {
		sig = sig[len(signaturePrefix):]
	}
	if sig == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil || len(decodedSig) != sha256.Size {
		return false
	}

	valid := false
	for _, secret := range secrets {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			continue
		}
		if verifyHMAC(payload, decodedSig, []byte(secret)) {
			valid = true
		}
	}
	return valid
}

// SignWebhookPayload returns the "sha256=<hex>" header value for payload.
func SignWebhookPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(payload, expectedSig, secret []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
