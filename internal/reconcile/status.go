// Package reconcile tracks per-transaction verification status and drives
// batch imports end-to-end.
package reconcile

import "github.com/clubledger/tally/internal/model"

// CanTransitionVerification reports whether a verification-status change is
// legal. Reconciled is terminal; not_found may return to unverified when new
// evidence arrives.
func CanTransitionVerification(from, to model.VerificationStatus) bool {
	switch from {
	case model.VerificationUnverified:
		return to == model.VerificationNotFound || to == model.VerificationReconciled
	case model.VerificationNotFound:
		return to == model.VerificationUnverified
	case model.VerificationReconciled:
		return false
	}
	return false
}

// CanTransitionAcceptance reports whether an acceptance-status change is
// legal. Acceptance is an axis orthogonal to verification: pending moves to
// accepted or refused, both terminal. A reversal of an accepted movement is
// a new correcting movement, not a status change.
func CanTransitionAcceptance(from, to model.AcceptanceStatus) bool {
	if from != model.AcceptancePending {
		return false
	}
	return to == model.AcceptanceAccepted || to == model.AcceptanceRefused
}

// EligibleForReporting reports whether a transaction may enter financial
// reporting: accepted, and either reconciled or explicitly reviewed by a
// human. The reporting collaborators enforce the policy; this core only
// answers the question.
func EligibleForReporting(txn model.Transaction, reviewed bool) bool {
	if txn.Acceptance != model.AcceptanceAccepted {
		return false
	}
	return txn.IsReconciled() || reviewed
}
