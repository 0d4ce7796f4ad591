package save

import (
	"encoding/json"
	"fmt"
)

// aspectField is the JSON member that carries an entity's Aspect.
const aspectField = "entityAspect"

// EntityState is the kind of mutation an entity carries.
type EntityState string

const (
	StateAdded    EntityState = "Added"
	StateModified EntityState = "Modified"
	StateDeleted  EntityState = "Deleted"
)

// Aspect describes what happened to an entity on the client.
type Aspect struct {
	// TypeName names the entity's TypeMetadata.
	TypeName string `json:"entityTypeName"`

	// State is Added, Modified or Deleted.
	State EntityState `json:"entityState"`

	// ChangedFields lists the fields a Modified entity changed.
	// When nil, the keys of OriginalValues are used instead.
	ChangedFields []string `json:"changedFields,omitempty"`

	// OriginalValues holds pre-change values, including the original
	// concurrency token of a Modified entity.
	OriginalValues map[string]any `json:"originalValuesMap,omitempty"`

	// ForceUpdate overwrites every declared field of a Modified entity,
	// including explicit nulls.
	ForceUpdate bool `json:"forceUpdate,omitempty"`

	// TempKey is the client-chosen placeholder key of an Added entity.
	TempKey any `json:"tempKey,omitempty"`
}

// Entity is a single mutation: the entity's field values plus its Aspect.
type Entity struct {
	Fields map[string]any
	Aspect Aspect

	serverCreated bool
}

// NewEntity returns an entity of the given type and state.
func NewEntity(typeName string, state EntityState, fields map[string]any) *Entity {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Entity{
		Fields: fields,
		Aspect: Aspect{TypeName: typeName, State: state},
	}
}

// ServerCreated reports whether the entity was registered with AddEntity.
func (e *Entity) ServerCreated() bool {
	return e.serverCreated
}

// changedFields returns the names of fields a Modified entity changed.
func (e *Entity) changedFields() []string {
	if e.Aspect.ChangedFields != nil {
		return e.Aspect.ChangedFields
	}
	names := make([]string, 0, len(e.Aspect.OriginalValues))
	for name := range e.Aspect.OriginalValues {
		names = append(names, name)
	}
	return names
}

// MarshalJSON writes the fields at top level with the aspect under "entityAspect".
func (e *Entity) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		m[k] = v
	}
	m[aspectField] = e.Aspect
	return json.Marshal(m)
}

// UnmarshalJSON reads the format written by MarshalJSON.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if a, ok := raw[aspectField]; ok {
		if err := json.Unmarshal(a, &e.Aspect); err != nil {
			return fmt.Errorf("%s: %w", aspectField, err)
		}
		delete(raw, aspectField)
	}
	e.Fields = make(map[string]any, len(raw))
	for k, v := range raw {
		var x any
		if err := json.Unmarshal(v, &x); err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		e.Fields[k] = x
	}
	return nil
}
