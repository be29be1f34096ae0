package valueobjects

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// localIDPrefix marks identifiers minted by the client
const localIDPrefix = "local-"

// wireID is an identifier the authority may send either as a JSON string or as
// a JSON number. The original form is kept so it can be sent back unchanged.
type wireID struct {
	value   string
	numeric bool
}

func parseWireID(data []byte) (wireID, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return wireID{}, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return wireID{}, err
		}
		return wireID{value: strings.TrimSpace(s)}, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return wireID{}, errors.New("id must be a string or a number")
	}
	return wireID{value: n.String(), numeric: true}, nil
}

func (w wireID) marshal() ([]byte, error) {
	if w.numeric {
		return []byte(w.value), nil
	}
	return json.Marshal(w.value)
}

// QuestionID identifies a question on the authority
type QuestionID struct {
	wire wireID
}

// NewQuestionID creates a QuestionID from a routing parameter
func NewQuestionID(id string) (QuestionID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return QuestionID{}, errors.New("question ID cannot be empty")
	}
	return QuestionID{wire: wireID{value: id}}, nil
}

// MustQuestionID is NewQuestionID for identifiers known to be valid
func MustQuestionID(id string) QuestionID {
	qid, err := NewQuestionID(id)
	if err != nil {
		panic(err)
	}
	return qid
}

// String returns the identifier as it appears in a URL path
func (id QuestionID) String() string {
	return id.wire.value
}

// Equals checks if two QuestionIDs are equal
func (id QuestionID) Equals(other QuestionID) bool {
	return id.wire.value == other.wire.value
}

// IsZero checks if the QuestionID is the zero value
func (id QuestionID) IsZero() bool {
	return id.wire.value == ""
}

// MarshalJSON implements json.Marshaler
func (id QuestionID) MarshalJSON() ([]byte, error) {
	return id.wire.marshal()
}

// UnmarshalJSON implements json.Unmarshaler
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	w, err := parseWireID(data)
	if err != nil {
		return err
	}
	id.wire = w
	return nil
}

// AnswerID is an authority-assigned answer identifier
type AnswerID struct {
	wire wireID
}

// NewAnswerID creates an AnswerID from its string form
func NewAnswerID(id string) (AnswerID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return AnswerID{}, errors.New("answer ID cannot be empty")
	}
	return AnswerID{wire: wireID{value: id}}, nil
}

// MustAnswerID is NewAnswerID for identifiers known to be valid
func MustAnswerID(id string) AnswerID {
	aid, err := NewAnswerID(id)
	if err != nil {
		panic(err)
	}
	return aid
}

// NumericAnswerID creates an AnswerID that serializes as a JSON number
func NumericAnswerID(id json.Number) AnswerID {
	return AnswerID{wire: wireID{value: id.String(), numeric: true}}
}

// String returns the string representation of the AnswerID
func (id AnswerID) String() string {
	return id.wire.value
}

// Equals checks if two AnswerIDs are equal
func (id AnswerID) Equals(other AnswerID) bool {
	return id.wire.value == other.wire.value
}

// IsZero checks if the AnswerID is the zero value
func (id AnswerID) IsZero() bool {
	return id.wire.value == ""
}

// MarshalJSON implements json.Marshaler
func (id AnswerID) MarshalJSON() ([]byte, error) {
	return id.wire.marshal()
}

// UnmarshalJSON implements json.Unmarshaler
func (id *AnswerID) UnmarshalJSON(data []byte) error {
	w, err := parseWireID(data)
	if err != nil {
		return err
	}
	id.wire = w
	return nil
}

// LocalID is a placeholder identifier for an answer the authority has not
// confirmed yet. Values are uuid based so they never repeat.
type LocalID struct {
	value string
}

// NewLocalID mints a fresh LocalID
func NewLocalID() LocalID {
	return LocalID{value: localIDPrefix + uuid.New().String()}
}

// String returns the string representation of the LocalID
func (id LocalID) String() string {
	return id.value
}

// Equals checks if two LocalIDs are equal
func (id LocalID) Equals(other LocalID) bool {
	return id.value == other.value
}

// IsZero checks if the LocalID is the zero value
func (id LocalID) IsZero() bool {
	return id.value == ""
}

// IsLocalID reports whether s looks like a client-minted identifier
func IsLocalID(s string) bool {
	return strings.HasPrefix(s, localIDPrefix)
}
