package session

import (
	"encoding/json"
	"errors"
)

// ErrRecordCorrupt is returned by Decode when the persisted record is not a
// valid session document.
var ErrRecordCorrupt = errors.New("session record corrupt")

// record is the persisted document: {"user": Session | null}.
type record struct {
	User *Session `json:"user"`
}

// Encode serializes s into the persisted record layout. A nil or token-less
// session encodes as {"user":null}.
func Encode(s *Session) ([]byte, error) {
	rec := record{}
	if s.Valid() {
		rec.User = s
	}
	return json.Marshal(rec)
}

// Decode parses a persisted record. It returns (nil, nil) for a logged-out
// record.
func Decode(data []byte) (*Session, error) {
	if len(data) == 0 {
		return nil, ErrRecordCorrupt
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Join(ErrRecordCorrupt, err)
	}
	if !rec.User.Valid() {
		return nil, nil
	}
	if !rec.User.Role.Valid() {
		return nil, ErrRecordCorrupt
	}

	return rec.User, nil
}
