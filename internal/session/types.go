package session

import (
	"errors"
	"slices"

	"github.com/google/uuid"
)

// MetadataKey is the store key holding the serialized Metadata document.
const MetadataKey = "authentication-metadata"

// ErrNoCurrentProfile is returned when an operation needs the profile of the
// current session and there is none.
var ErrNoCurrentProfile = errors.New("no profile for the current session")

// ID identifies a session. The zero value means "no session".
type ID = uuid.UUID

// Nil is the zero ID.
var Nil = uuid.Nil

// NewID returns a fresh random session ID.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the canonical string form of a session ID.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// Affiliation is the relation of an account to its school, as reported by
// the identity provider.
type Affiliation string

const (
	AffiliationStudent Affiliation = "student"
	AffiliationParent  Affiliation = "parent/guardian"
)

// Supported reports whether portal can serve accounts with this affiliation.
func (a Affiliation) Supported() bool {
	return a == AffiliationStudent || a == AffiliationParent
}

// Student summarizes a student linked to a parent/guardian account.
type Student struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// AccountProfile describes the account logged in to one session.
type AccountProfile struct {
	// SessionID is the owning session.
	SessionID ID `json:"sessionIdentifier"`
	// Authenticated is false for a placeholder whose login has not completed.
	Authenticated bool `json:"authenticated"`
	// Affiliation is empty until the first login.
	Affiliation      Affiliation `json:"affiliation,omitempty"`
	AccountUUID      string      `json:"accountUUID,omitempty"`
	OrganizationUUID string      `json:"organizationUUID,omitempty"`
	Name             string      `json:"name,omitempty"`
	SchoolName       string      `json:"schoolName,omitempty"`
	// Students lists the linked students of a parent/guardian.
	Students []Student `json:"students,omitempty"`
}

// HasStudent reports whether id is one of the profile's linked students.
func (p AccountProfile) HasStudent(id string) bool {
	return slices.ContainsFunc(p.Students, func(s Student) bool { return s.UUID == id })
}

// DisplayName returns the profile name or a placeholder for profiles that
// never completed a login.
func (p AccountProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return "(not logged in)"
}

func (p AccountProfile) clone() AccountProfile {
	p.Students = slices.Clone(p.Students)
	return p
}

// Metadata is the complete persisted session state.
type Metadata struct {
	// CurrentSessionID is the active session, or the zero ID.
	CurrentSessionID ID `json:"currentSessionIdentifier,omitzero"`
	// CurrentStudent is the UUID of the selected student, if any.
	CurrentStudent string `json:"currentStudent,omitempty"`
	// Profiles are kept in the order they were created.
	Profiles []AccountProfile `json:"profiles"`
}

// HasCurrentSession reports whether a session is selected.
func (m Metadata) HasCurrentSession() bool {
	return m.CurrentSessionID != uuid.Nil
}

// Profile returns the profile owned by id.
func (m Metadata) Profile(id ID) (AccountProfile, bool) {
	for _, p := range m.Profiles {
		if p.SessionID == id {
			return p, true
		}
	}
	return AccountProfile{}, false
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := m
	out.Profiles = make([]AccountProfile, len(m.Profiles))
	for i, p := range m.Profiles {
		out.Profiles[i] = p.clone()
	}
	return out
}

// MetadataUpdate is a partial Metadata. Nil fields are left unchanged.
type MetadataUpdate struct {
	// CurrentSessionID set to the zero ID clears the selection.
	CurrentSessionID *ID
	// CurrentStudent set to "" clears the selected student.
	CurrentStudent *string
	// Profiles replaces the whole list when non-nil.
	Profiles *[]AccountProfile
}

// Apply returns m with every non-nil field of u applied.
func (u MetadataUpdate) Apply(m Metadata) Metadata {
	if u.CurrentSessionID != nil {
		m.CurrentSessionID = *u.CurrentSessionID
	}
	if u.CurrentStudent != nil {
		m.CurrentStudent = *u.CurrentStudent
	}
	if u.Profiles != nil {
		m.Profiles = slices.Clone(*u.Profiles)
	}
	return m
}

// ProfileUpdate is a partial AccountProfile. Nil fields are left unchanged.
// The session ID of a profile never changes.
type ProfileUpdate struct {
	Authenticated    *bool
	Affiliation      *Affiliation
	AccountUUID      *string
	OrganizationUUID *string
	Name             *string
	SchoolName       *string
	Students         *[]Student
}

// Apply returns p with every non-nil field of u applied.
func (u ProfileUpdate) Apply(p AccountProfile) AccountProfile {
	if u.Authenticated != nil {
		p.Authenticated = *u.Authenticated
	}
	if u.Affiliation != nil {
		p.Affiliation = *u.Affiliation
	}
	if u.AccountUUID != nil {
		p.AccountUUID = *u.AccountUUID
	}
	if u.OrganizationUUID != nil {
		p.OrganizationUUID = *u.OrganizationUUID
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.SchoolName != nil {
		p.SchoolName = *u.SchoolName
	}
	if u.Students != nil {
		p.Students = slices.Clone(*u.Students)
	}
	return p
}

// Ptr returns a pointer to v. It is meant for building updates.
func Ptr[T any](v T) *T {
	return &v
}
