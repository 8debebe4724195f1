package enums

import "fmt"

// LicenseStatus maps to the license_status enum in Postgres.
type LicenseStatus string

const (
	LicenseStatusActive   LicenseStatus = "active"
	LicenseStatusTrial    LicenseStatus = "trial"
	LicenseStatusInactive LicenseStatus = "inactive"
	LicenseStatusExpired  LicenseStatus = "expired"
	LicenseStatusCanceled LicenseStatus = "canceled"
)

var validLicenseStatuses = []LicenseStatus{
	LicenseStatusActive,
	LicenseStatusTrial,
	LicenseStatusInactive,
	LicenseStatusExpired,
	LicenseStatusCanceled,
}

// String implements fmt.Stringer.
func (l LicenseStatus) String() string {
	return string(l)
}

// IsValid reports whether the value matches the canonical license_status enum.
func (l LicenseStatus) IsValid() bool {
	for _, candidate := range validLicenseStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// Entitles reports whether the status grants access on its own. Expiry is
// evaluated separately at read time.
func (l LicenseStatus) Entitles() bool {
	return l == LicenseStatusActive || l == LicenseStatusTrial
}

// ParseLicenseStatus converts raw input into LicenseStatus.
func ParseLicenseStatus(value string) (LicenseStatus, error) {
	for _, candidate := range validLicenseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid license status %q", value)
}
