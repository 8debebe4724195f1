package licenses

import (
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/keymint-labs/keymint-backend/pkg/enums"
)

// Transition is the state machine's decision for one event against one
// license. When Apply is false the event is acknowledged and ignored.
// SetExpiry distinguishes "set expires_at to ExpiresAt" from "leave
// expires_at alone".
type Transition struct {
	Apply     bool
	Status    enums.LicenseStatus
	SetExpiry bool
	ExpiresAt *time.Time
}

func noTransition() Transition {
	return Transition{}
}

// StatusForNewSubscription decides the initial status and expiry for a
// license created from a subscription-mode checkout. Trialing
// subscriptions start as trial with the trial end as expiry; everything
// else starts active with no expiry until the first sync.
func StatusForNewSubscription(subStatus stripe.SubscriptionStatus, trialEnd *time.Time) (enums.LicenseStatus, *time.Time) {
	if subStatus == stripe.SubscriptionStatusTrialing {
		return enums.LicenseStatusTrial, trialEnd
	}
	return enums.LicenseStatusActive, nil
}

// OnSubscriptionUpdated maps a subscription sync onto the stored
// license. Canceled is terminal: a delayed update event arriving after
// the subscription was deleted must not resurrect the license.
func OnSubscriptionUpdated(current enums.LicenseStatus, subStatus stripe.SubscriptionStatus, periodEnd, trialEnd *time.Time) Transition {
	if current == enums.LicenseStatusCanceled {
		return noTransition()
	}
	switch subStatus {
	case stripe.SubscriptionStatusActive:
		return Transition{Apply: true, Status: enums.LicenseStatusActive, SetExpiry: true, ExpiresAt: periodEnd}
	case stripe.SubscriptionStatusTrialing:
		return Transition{Apply: true, Status: enums.LicenseStatusTrial, SetExpiry: true, ExpiresAt: trialEnd}
	case stripe.SubscriptionStatusPastDue:
		return Transition{Apply: true, Status: enums.LicenseStatusInactive, SetExpiry: true, ExpiresAt: periodEnd}
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid:
		return Transition{Apply: true, Status: enums.LicenseStatusCanceled, SetExpiry: true, ExpiresAt: periodEnd}
	default:
		return noTransition()
	}
}

// OnSubscriptionDeleted cancels the license and leaves expiry untouched.
func OnSubscriptionDeleted(current enums.LicenseStatus) Transition {
	if current == enums.LicenseStatusCanceled {
		return noTransition()
	}
	return Transition{Apply: true, Status: enums.LicenseStatusCanceled}
}

// OnInvoicePaymentSucceeded reactivates a license from a successful
// renewal charge. Expiry is left untouched; the subscription sync that
// follows carries the new period end.
func OnInvoicePaymentSucceeded(current enums.LicenseStatus) Transition {
	if current == enums.LicenseStatusCanceled {
		return noTransition()
	}
	return Transition{Apply: true, Status: enums.LicenseStatusActive}
}

// OnInvoicePaymentFailed parks the license as inactive until the
// processor reports a recovery.
func OnInvoicePaymentFailed(current enums.LicenseStatus) Transition {
	if current == enums.LicenseStatusCanceled {
		return noTransition()
	}
	return Transition{Apply: true, Status: enums.LicenseStatusInactive}
}
