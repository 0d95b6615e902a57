package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"portal/internal/session"
)

// Claim names read from the ID token.
const (
	ClaimSubject     = "sub"
	ClaimAffiliation = "affiliation"
	ClaimGivenName   = "given_name"
	ClaimOrgName     = "orgname"
	ClaimStudents    = "leerlingen"
)

// subjectSeparators may join the organization and account halves of "sub".
const subjectSeparators = `\:`

// Claims are the identity claims portal relies on.
type Claims struct {
	OrganizationUUID string
	AccountUUID      string
	// Affiliation is empty when the claim is absent.
	Affiliation session.Affiliation
	GivenName   string
	OrgName     string
	Students    []session.Student
}

// ClaimsError reports a claim that is present but malformed.
type ClaimsError struct {
	Claim  string
	Reason string
}

func (e *ClaimsError) Error() string {
	return fmt.Sprintf("invalid %q claim: %s", e.Claim, e.Reason)
}

// studentClaim is one entry of the linked students claim.
type studentClaim struct {
	UUID string `json:"uuid"`
	Name string `json:"naam"`
}

// ParseClaims validates raw ID token claims.
func ParseClaims(raw map[string]any) (Claims, error) {
	var c Claims

	org, account, err := parseSubject(raw[ClaimSubject])
	if err != nil {
		return Claims{}, err
	}
	c.OrganizationUUID = org
	c.AccountUUID = account

	affiliation, err := optionalString(raw, ClaimAffiliation)
	if err != nil {
		return Claims{}, err
	}
	c.Affiliation = session.Affiliation(affiliation)

	if c.GivenName, err = optionalString(raw, ClaimGivenName); err != nil {
		return Claims{}, err
	}
	if c.OrgName, err = optionalString(raw, ClaimOrgName); err != nil {
		return Claims{}, err
	}
	if c.Students, err = parseStudents(raw[ClaimStudents]); err != nil {
		return Claims{}, err
	}
	return c, nil
}

func parseSubject(v any) (string, string, error) {
	sub, ok := v.(string)
	if !ok || sub == "" {
		return "", "", &ClaimsError{Claim: ClaimSubject, Reason: "missing or not a string"}
	}
	i := strings.IndexAny(sub, subjectSeparators)
	if i < 0 {
		return "", "", &ClaimsError{Claim: ClaimSubject, Reason: "expected <organization>:<account>"}
	}
	org, err := uuid.Parse(sub[:i])
	if err != nil {
		return "", "", &ClaimsError{Claim: ClaimSubject, Reason: "organization is not a UUID"}
	}
	account, err := uuid.Parse(sub[i+1:])
	if err != nil {
		return "", "", &ClaimsError{Claim: ClaimSubject, Reason: "account is not a UUID"}
	}
	return org.String(), account.String(), nil
}

func optionalString(raw map[string]any, name string) (string, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ClaimsError{Claim: name, Reason: fmt.Sprintf("expected a string, got %T", v)}
	}
	return s, nil
}

// parseStudents accepts the claim either as a JSON-encoded string or as an
// already decoded array.
func parseStudents(v any) ([]session.Student, error) {
	var data []byte
	switch t := v.(type) {
	case nil:
		return []session.Student{}, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return []session.Student{}, nil
		}
		data = []byte(t)
	case []any:
		encoded, err := json.Marshal(t)
		if err != nil {
			return nil, &ClaimsError{Claim: ClaimStudents, Reason: err.Error()}
		}
		data = encoded
	default:
		return nil, &ClaimsError{Claim: ClaimStudents, Reason: fmt.Sprintf("expected a list, got %T", v)}
	}

	var entries []studentClaim
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &ClaimsError{Claim: ClaimStudents, Reason: err.Error()}
	}
	students := make([]session.Student, 0, len(entries))
	for i, e := range entries {
		if e.UUID == "" {
			return nil, &ClaimsError{Claim: ClaimStudents, Reason: fmt.Sprintf("entry %d has no uuid", i)}
		}
		students = append(students, session.Student{UUID: e.UUID, Name: e.Name})
	}
	return students, nil
}
