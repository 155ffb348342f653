package session

// Role defines which clinic area an authenticated identity belongs to.
type Role string

const (
	// RolePatient is a patient account resolved by health-card number.
	RolePatient Role = "patient"
	// RoleProvider is a provider (doctor) account resolved by username.
	RoleProvider Role = "provider"
	// RoleAdmin is a clinic admin account resolved by username.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// Session is the authenticated identity held client-side.
//
// A Session exists if and only if AccessToken is non-empty; a nil or
// token-less Session means logged out.
type Session struct {
	Role         Role           `json:"role"`
	SubjectID    string         `json:"subjectId"`
	DisplayName  string         `json:"displayName,omitempty"`
	Contact      string         `json:"contact,omitempty"`
	AccessToken  string         `json:"accessToken"`
	IssuedFields map[string]any `json:"issuedFields,omitempty"`
}

// Valid reports whether s represents a logged-in identity.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != ""
}

// Clone returns a copy of s that shares no maps with it.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.IssuedFields != nil {
		out.IssuedFields = make(map[string]any, len(s.IssuedFields))
		for k, v := range s.IssuedFields {
			out.IssuedFields[k] = v
		}
	}
	return &out
}

// Patch is a shallow partial update applied by [Store.Update]. Nil fields are
// left untouched; IssuedFields keys overwrite existing keys one by one.
type Patch struct {
	DisplayName  *string
	Contact      *string
	IssuedFields map[string]any
}

func (p Patch) apply(s *Session) {
	if p.DisplayName != nil {
		s.DisplayName = *p.DisplayName
	}
	if p.Contact != nil {
		s.Contact = *p.Contact
	}
	if len(p.IssuedFields) > 0 {
		if s.IssuedFields == nil {
			s.IssuedFields = make(map[string]any, len(p.IssuedFields))
		}
		for k, v := range p.IssuedFields {
			s.IssuedFields[k] = v
		}
	}
}
