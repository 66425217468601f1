// Package diagram holds the client-facing shape of a UML class diagram: the
// document a client saves, the per-save mapping from client ids to durable
// ids, and the projection of stored rows back into that shape.
package diagram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/uml-studio/engine/internal/models"
	appErr "github.com/uml-studio/engine/pkg/errors"
)

// LocalID is a client-local class identifier. It is only meaningful inside
// one save request. The zero value means "not supplied"; JSON numbers are kept
// as their decimal text.
type LocalID struct {
	value   string
	present bool
}

// NewLocalID returns a supplied LocalID.
func NewLocalID(s string) LocalID { return LocalID{value: s, present: true} }

// Present reports whether the client supplied the id.
func (id LocalID) Present() bool { return id.present }

func (id LocalID) String() string {
	if !id.present {
		return "<none>"
	}
	return id.value
}

func (id *LocalID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = LocalID{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = NewLocalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number")
	}
	*id = NewLocalID(n.String())
	return nil
}

func (id LocalID) MarshalJSON() ([]byte, error) {
	if !id.present {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// Document is the body of a save request. Classes and Relationships are
// pointers so an absent key can be told apart from an empty list.
type Document struct {
	Classes       *[]ClassDocument        `json:"classes" validate:"omitempty,dive"`
	Relationships *[]RelationshipDocument `json:"relationships" validate:"omitempty,dive"`
}

// ClassDocument is one class as sent by the client.
type ClassDocument struct {
	ID         LocalID            `json:"id"`
	ProjectID  *string            `json:"projectId,omitempty"` // echoed back by clients, ignored
	Name       string             `json:"name" validate:"required,max=255"`
	Stereotype *string            `json:"stereotype"`
	Attributes []models.Attribute `json:"attributes"`
	Methods    []models.Method    `json:"methods"`
	Position   *models.Position   `json:"position"`
}

// RelationshipDocument references its endpoints by client-local id.
type RelationshipDocument struct {
	ID                 LocalID `json:"id"` // ignored, edges get fresh ids
	ProjectID          *string `json:"projectId,omitempty"`
	SourceClassID      LocalID `json:"sourceClassId"`
	TargetClassID      LocalID `json:"targetClassId"`
	RelationshipType   string  `json:"relationshipType" validate:"required,max=64"`
	SourceMultiplicity *string `json:"sourceMultiplicity"`
	TargetMultiplicity *string `json:"targetMultiplicity"`
	Label              *string `json:"label"`
}

// Decode reads a save request body. It returns the parsed document together
// with the raw bytes, which are kept as the project's snapshot. Syntax errors
// are malformed documents; unknown keys and wrong JSON types are validation
// failures naming the offending field.
func Decode(r io.Reader) (*Document, json.RawMessage, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, appErr.Wrap(err, appErr.CodeMalformedDocument, "request body could not be read")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, appErr.New(appErr.CodeMalformedDocument, "request body must contain the 'classes' and 'relationships' lists")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, decodeError(err)
	}
	if dec.More() {
		return nil, nil, appErr.New(appErr.CodeMalformedDocument, "request body must contain a single JSON object")
	}
	return &doc, json.RawMessage(raw), nil
}

// Validate enforces the presence of both top-level lists.
func (d *Document) Validate() error {
	if d == nil || d.Classes == nil || d.Relationships == nil {
		return appErr.New(appErr.CodeMalformedDocument, "request body must contain the 'classes' and 'relationships' lists")
	}
	return nil
}

// ClassList returns the classes, or nil when absent.
func (d *Document) ClassList() []ClassDocument {
	if d == nil || d.Classes == nil {
		return nil
	}
	return *d.Classes
}

// RelationshipList returns the relationships, or nil when absent.
func (d *Document) RelationshipList() []RelationshipDocument {
	if d == nil || d.Relationships == nil {
		return nil
	}
	return *d.Relationships
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			return appErr.Wrap(err, appErr.CodeMalformedDocument, "request body must be a JSON object")
		}
		return appErr.Wrap(err, appErr.CodeValidation, "request body failed validation").
			WithMeta("fields", map[string]string{field: "must be of type " + typeErr.Type.String()})
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return appErr.Wrap(err, appErr.CodeValidation, "request body failed validation").
			WithMeta("fields", map[string]string{strings.Trim(field, `"`): "unknown field"})
	}
	return appErr.Wrap(err, appErr.CodeMalformedDocument, "request body is not valid JSON")
}
