package security

import (
	"crypto/rand"
	"fmt"
)

// LicenseKeyLength is the fixed length of every issued license key.
const LicenseKeyLength = 32

var licenseKeyCharset = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// GenerateLicenseKey produces a crypto-random key drawn from the
// uppercase alphanumeric charset. Keys are opaque and carry no
// embedded structure.
func GenerateLicenseKey() (string, error) {
	result := make([]rune, LicenseKeyLength)
	for i := 0; i < LicenseKeyLength; i++ {
		idx, err := randInt(len(licenseKeyCharset))
		if err != nil {
			return "", err
		}
		result[i] = licenseKeyCharset[idx]
	}
	return string(result), nil
}

func randInt(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("invalid max %d", max)
	}
	// Rejection sampling keeps the draw uniform over the charset.
	limit := 256 - (256 % max)
	buff := make([]byte, 1)
	for {
		if _, err := rand.Read(buff); err != nil {
			return 0, err
		}
		if int(buff[0]) < limit {
			return int(buff[0]) % max, nil
		}
	}
}
