package identity

import (
	"crypto/md5" //nolint:gosec // legacy account-directory credential format
	"encoding/hex"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

const staffSuffix = "_teacher"

var (
	ErrMissingDisplayName = errors.New("display name is required")
	ErrMissingBirthDate   = errors.New("birth date is required")
	ErrMissingSubject     = errors.New("subject id is required")
)

// Deriver computes canonical identities. The salt is the fixed institutional
// salt shared with the account directory.
type Deriver struct {
	salt string
}

func NewDeriver(salt string) Deriver {
	return Deriver{salt: salt}
}

// Derive returns the username and password for claims under role.
func (d Deriver) Derive(role Role, claims Claims) (CanonicalIdentity, error) {
	username, err := DeriveUsername(role, claims)
	if err != nil {
		return CanonicalIdentity{}, err
	}
	return CanonicalIdentity{
		Username: username,
		Password: d.Password(username),
	}, nil
}

// Password returns hex(md5(username + salt)). This is a uniqueness digest
// kept for compatibility with accounts already provisioned in the directory,
// not a secret: anyone holding the salt and the public claims can recompute it.
//
// The same holds one level up. Registration derives this credential from the
// claims the caller submits, not from a provider exchange, so the gateway
// trusts the front end that relays them. Whoever can reach the register route
// with a subject id can provision, resume and sign in as that subject.
func (d Deriver) Password(username string) string {
	sum := md5.Sum([]byte(username + d.salt)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// DeriveUsername is the pure username rule:
//   - student: lower(firstToken(displayName) + "@" + digits(birthDate))
//   - staff:   lower(subjectID + "_teacher")
func DeriveUsername(role Role, claims Claims) (string, error) {
	switch role {
	case RoleStudent:
		return StudentUsername(claims.DisplayName, claims.BirthDate)
	case RoleStaff:
		return StaffUsername(claims.SubjectID)
	default:
		return "", errors.New("unsupported role")
	}
}

// StudentUsername derives a learner username from a display name and a
// DD/MM/YYYY birth date.
func StudentUsername(displayName, birthDate string) (string, error) {
	first := FirstToken(displayName)
	if first == "" {
		return "", ErrMissingDisplayName
	}
	digits := DigitsOnly(birthDate)
	if digits == "" {
		return "", ErrMissingBirthDate
	}
	return strings.ToLower(first + "@" + digits), nil
}

// StaffUsername derives a staff username from the provider subject id.
func StaffUsername(subjectID string) (string, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", ErrMissingSubject
	}
	return strings.ToLower(subjectID + staffSuffix), nil
}

// RoleForUsername infers the role a directory username was derived under.
func RoleForUsername(username string) Role {
	if strings.HasSuffix(strings.ToLower(username), staffSuffix) {
		return RoleStaff
	}
	return RoleStudent
}

// FirstToken returns the first whitespace-separated word of s.
func FirstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DigitsOnly drops every non-digit rune.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

var birthDateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"2006/01/02",
}

// NormalizeBirthDate converts a provider birth date into DD/MM/YYYY. Only the
// first ten characters are considered, so timestamps are accepted. An
// unparseable value is returned unchanged.
func NormalizeBirthDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	head := raw
	if len(head) > 10 {
		head = head[:10]
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, head); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return raw
}

// NormalizePhone formats an Indian phone number as E.164. Numbers that do
// not parse are returned trimmed but otherwise unchanged.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, "IN")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
