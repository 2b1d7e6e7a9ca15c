package enterprise

import (
	"errors"
	"slices"
	"time"
)

//nolint:gochecknoglobals // sentinel error
var ErrLicenseExpired = errors.New("enterprise: license expired")

//nolint:gochecknoglobals // sentinel error
var ErrLicenseInvalid = errors.New("enterprise: license invalid")

//nolint:gochecknoglobals // sentinel error
var ErrNoLicense = errors.New("enterprise: no license configured")

//nolint:gochecknoglobals // sentinel error
var ErrSessionQuota = errors.New("enterprise: active session quota reached")

// License represents an enterprise plan for a care provider organisation.
type License struct {
	ID                string
	Org               string
	MaxUsers          int
	MaxActiveSessions int // concurrent mock inspection sessions per tenant
	Features          []string
	ExpiresAt         time.Time
	IssuedAt          time.Time
}

// Validator checks enterprise licenses.
type Validator struct {
	license *License
}

// NewValidator creates a Validator. If license is nil, all enterprise checks fail with ErrNoLicense.
func NewValidator(license *License) *Validator {
	return &Validator{license: license}
}

// Validate checks if the license is valid and not expired.
func (v *Validator) Validate() error {
	if v.license == nil {
		return ErrNoLicense
	}

	if time.Now().After(v.license.ExpiresAt) {
		return ErrLicenseExpired
	}

	return nil
}

// HasFeature checks if a specific feature is enabled.
func (v *Validator) HasFeature(feature string) bool {
	if v.license == nil {
		return false
	}

	return slices.Contains(v.license.Features, feature)
}

// MaxUsers returns the maximum allowed users (0 = unlimited when no license).
func (v *Validator) MaxUsers() int {
	if v.license == nil {
		return 0
	}

	return v.license.MaxUsers
}

// MaxActiveSessions returns the maximum concurrent mock inspection sessions
// a tenant may run (0 = unlimited).
func (v *Validator) MaxActiveSessions() int {
	if v.license == nil {
		return 0
	}

	return v.license.MaxActiveSessions
}

// AllowSessionStart reports whether a tenant with the given number of active
// sessions may start another. Unlimited plans (quota 0) always allow.
func (v *Validator) AllowSessionStart(activeCount int64) error {
	quota := v.MaxActiveSessions()
	if quota <= 0 {
		return nil
	}

	if activeCount >= int64(quota) {
		return ErrSessionQuota
	}

	return nil
}
