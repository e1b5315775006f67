package core

// Verdict is the verification outcome attached to an assistant message.
// The first three values are actual judgements produced by the verifier; the
// unverified pair records that no judgement was possible.
type Verdict string

const (
	VerdictNone         Verdict = ""
	VerdictSupported    Verdict = "supported"
	VerdictUnsupported  Verdict = "unsupported"
	VerdictInsufficient Verdict = "insufficient_evidence"
	// VerdictUnverified marks an answer whose verification call failed.
	VerdictUnverified Verdict = "unverified"
	// VerdictUnverifiedDegraded marks an answer drafted without evidence
	// after the search provider was unreachable.
	VerdictUnverifiedDegraded Verdict = "unverified_degraded"
)

// Valid reports whether v is a member of the closed verdict set.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictNone, VerdictSupported, VerdictUnsupported, VerdictInsufficient,
		VerdictUnverified, VerdictUnverifiedDegraded:
		return true
	}
	return false
}

// Judged reports whether v came out of an actual verifier call.
func (v Verdict) Judged() bool {
	return v == VerdictSupported || v == VerdictUnsupported || v == VerdictInsufficient
}
