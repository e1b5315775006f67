package core

import "strconv"

// UnmigratedUserID is the sentinel stored in numeric identity columns for
// accounts that still live under a legacy string identifier.
const UnmigratedUserID int64 = -1

// UserRef is a single value over the dual identity columns the store keeps
// for historical reasons: a legacy string identifier and a numeric one. The
// numeric form wins whenever it is present and not the unmigrated sentinel;
// the legacy string is the fallback. The two representations are never
// coerced into each other.
type UserRef struct {
	numeric    int64
	legacy     string
	hasNumeric bool
}

// NumericUser builds a reference from a migrated numeric identity.
func NumericUser(id int64) UserRef {
	return UserRef{numeric: id, hasNumeric: true}
}

// LegacyUser builds a reference from a legacy string identity.
func LegacyUser(id string) UserRef {
	return UserRef{legacy: id}
}

// ResolveUserRef reconstructs a reference from the raw column pair. A nil or
// sentinel numeric column means the account is unmigrated and the legacy
// string (when present) is authoritative.
func ResolveUserRef(numeric *int64, legacy *string) UserRef {
	ref := UserRef{}
	if legacy != nil {
		ref.legacy = *legacy
	}
	if numeric != nil && *numeric != UnmigratedUserID {
		ref.numeric = *numeric
		ref.hasNumeric = true
	}
	return ref
}

// Numeric returns the numeric identity and whether it is authoritative.
func (u UserRef) Numeric() (int64, bool) {
	return u.numeric, u.hasNumeric
}

// Legacy returns the legacy string identity and whether one is present.
func (u UserRef) Legacy() (string, bool) {
	return u.legacy, u.legacy != ""
}

// Migrated reports whether the reference carries an authoritative numeric
// identity.
func (u UserRef) Migrated() bool { return u.hasNumeric }

// IsZero reports whether the reference carries no identity at all, as on
// assistant-authored messages.
func (u UserRef) IsZero() bool { return !u.hasNumeric && u.legacy == "" }

// Columns decomposes the reference back into the raw store column pair. An
// unmigrated reference yields a nil numeric column; callers that need the
// sentinel (shared_messages) substitute it themselves.
func (u UserRef) Columns() (numeric *int64, legacy *string) {
	if u.hasNumeric {
		n := u.numeric
		numeric = &n
	}
	if u.legacy != "" {
		l := u.legacy
		legacy = &l
	}
	return numeric, legacy
}

// String renders the authoritative identity for logs.
func (u UserRef) String() string {
	if u.hasNumeric {
		return strconv.FormatInt(u.numeric, 10)
	}
	if u.legacy != "" {
		return u.legacy
	}
	return ""
}
