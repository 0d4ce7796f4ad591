package save

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/jacentio/changeset/internal/keygen"
	"github.com/jacentio/changeset/store"
)

// Op is the store operation a Document turns into.
type Op int

const (
	OpInsert Op = iota + 1
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Document is a prepared store operation for one entity.
type Document struct {
	Op       Op
	TypeName string
	Entity   *Entity

	// Key is the entity's key; for inserts, the server-assigned one.
	Key any

	// Body is the document written by an insert.
	Body store.Document

	// Filter selects the target of an update or delete.
	Filter store.Filter

	// Delta holds the fields written by an update.
	Delta store.Document
}

// set overwrites a field in the insert body or update delta.
func (d *Document) set(field string, v any) {
	switch d.Op {
	case OpInsert:
		d.Body[field] = v
	case OpUpdate:
		d.Delta[field] = v
	}
}

// pendingFixup is a foreign-key value that may turn out to be a placeholder.
type pendingFixup struct {
	doc   *Document
	field string
	value any

	// invalid is set when value failed conversion; it must resolve to a real key.
	invalid *Error
}

// preparer turns entities into Documents, collecting key mappings and
// foreign-key fixup candidates along the way.
type preparer struct {
	newUUID     func() string
	newBinaryID func() xid.ID

	mappings []KeyMapping
	fixups   []pendingFixup
}

func newPreparer() *preparer {
	return &preparer{
		newUUID:     keygen.NewUUID,
		newBinaryID: keygen.NewBinaryID,
	}
}

// prepareGroup prepares every entity of one type, stopping at the first error.
func (p *preparer) prepareGroup(md *TypeMetadata, entities []*Entity) ([]*Document, error) {
	docs := make([]*Document, 0, len(entities))
	for _, e := range entities {
		doc, err := p.prepare(md, e)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// prepare converts one entity into exactly one Document.
func (p *preparer) prepare(md *TypeMetadata, e *Entity) (*Document, error) {
	keyName := md.KeyField.Name
	rawKey := e.Fields[keyName]
	force := e.Aspect.State == StateModified && e.Aspect.ForceUpdate

	selected, err := selectFields(md, e)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(selected))
	invalid := map[string]*Error{}
	placeholderKey := false
	var foreignKeys []string
	for _, f := range selected {
		v := e.Fields[f.Name]
		if v == nil {
			if force {
				values[f.Name] = nil
			}
			continue
		}
		cv, err := coerceValue(f.DataType, v)
		if err != nil {
			verr := &Error{Kind: KindValidation, Op: "prepare", TypeName: md.TypeName, Key: rawKey,
				Field: f.Name, Value: v, Msg: "invalid value", Err: err}
			switch {
			case f.Name == keyName && e.Aspect.State == StateAdded && md.AutoKey != AutoKeyNone:
				// The server replaces it.
				placeholderKey = true
			case f.IsForeignKey:
				// May be a placeholder outside the key's value domain; fixup decides.
				invalid[f.Name] = verr
			default:
				return nil, verr
			}
			cv = v
		}
		values[f.Name] = cv
		if f.IsForeignKey {
			foreignKeys = append(foreignKeys, f.Name)
		}
	}

	doc := &Document{TypeName: md.TypeName, Entity: e, Key: values[keyName]}
	switch e.Aspect.State {
	case StateAdded:
		if err := p.buildInsert(md, e, doc, values, placeholderKey); err != nil {
			return nil, err
		}
	case StateModified:
		if err := p.buildUpdate(md, e, doc, values); err != nil {
			return nil, err
		}
	case StateDeleted:
		if doc.Key == nil {
			return nil, missingKey(md, e)
		}
		doc.Op = OpDelete
		doc.Filter = store.Filter{Key: doc.Key}
	}

	if doc.Op != OpDelete {
		for _, name := range foreignKeys {
			p.fixups = append(p.fixups, pendingFixup{doc: doc, field: name, value: values[name], invalid: invalid[name]})
		}
	}
	return doc, nil
}

// selectFields returns the declared fields coerced for the entity's state.
func selectFields(md *TypeMetadata, e *Entity) ([]*FieldMetadata, error) {
	all := make([]*FieldMetadata, len(md.Fields))
	for i := range md.Fields {
		all[i] = &md.Fields[i]
	}

	switch e.Aspect.State {
	case StateAdded:
		return all, nil
	case StateModified:
		if e.Aspect.ForceUpdate {
			return all, nil
		}
		selected := []*FieldMetadata{md.KeyField}
		for _, name := range e.changedFields() {
			if name == md.KeyField.Name {
				continue
			}
			if f, ok := md.Field(name); ok {
				selected = append(selected, f)
			}
		}
		return selected, nil
	case StateDeleted:
		return []*FieldMetadata{md.KeyField}, nil
	default:
		return nil, &Error{Kind: KindValidation, Op: "prepare", TypeName: md.TypeName, Key: e.Fields[md.KeyField.Name],
			Msg: fmt.Sprintf("unknown entity state %q", e.Aspect.State)}
	}
}

// buildInsert assigns the real key, records a KeyMapping when it differs from
// the placeholder and builds the insert body. placeholderKey marks a key
// value that is not a valid key of the type.
func (p *preparer) buildInsert(md *TypeMetadata, e *Entity, doc *Document, values map[string]any, placeholderKey bool) error {
	keyName := md.KeyField.Name
	temp := e.Aspect.TempKey
	if temp != nil {
		if cv, err := coerceValue(md.KeyField.DataType, temp); err == nil {
			temp = cv
		}
	} else if placeholderKey {
		temp = doc.Key
	}

	key := doc.Key
	if md.AutoKey != AutoKeyNone && (key == nil || placeholderKey || (temp != nil && sameKey(key, temp))) {
		key = p.generateKey(md.AutoKey)
	}
	if key == nil {
		return missingKey(md, e)
	}
	if temp != nil && !sameKey(temp, key) {
		p.mappings = append(p.mappings, KeyMapping{TypeName: md.TypeName, TempValue: temp, RealValue: key})
	}

	body := make(store.Document, len(e.Fields))
	for name, v := range e.Fields {
		if _, declared := md.Field(name); declared {
			continue
		}
		body[name] = v
	}
	for name, v := range values {
		body[name] = v
	}
	body[keyName] = key

	doc.Op = OpInsert
	doc.Key = key
	doc.Body = body
	return nil
}

// buildUpdate builds the filter, conditioned on the original concurrency
// token when the type declares one, and the delta.
func (p *preparer) buildUpdate(md *TypeMetadata, e *Entity, doc *Document, values map[string]any) error {
	if doc.Key == nil {
		return missingKey(md, e)
	}
	filter := store.Filter{Key: doc.Key}
	if cf := md.ConcurrencyField; cf != nil {
		orig, ok := e.Aspect.OriginalValues[cf.Name]
		if !ok {
			// Unchanged token: the current value is the original one.
			orig = e.Fields[cf.Name]
		}
		if orig != nil {
			cv, err := coerceValue(cf.DataType, orig)
			if err != nil {
				return &Error{Kind: KindValidation, Op: "prepare", TypeName: md.TypeName, Key: doc.Key,
					Field: cf.Name, Value: orig, Msg: "invalid original concurrency value", Err: err}
			}
			orig = cv
		}
		filter.Match = map[string]any{cf.Name: orig}
	}

	doc.Op = OpUpdate
	doc.Filter = filter
	doc.Delta = store.Document(values)
	return nil
}

func (p *preparer) generateKey(kind AutoKeyKind) any {
	switch kind {
	case AutoKeyRandomUUID:
		return p.newUUID()
	case AutoKeyBinaryID:
		return p.newBinaryID()
	}
	return nil
}

func missingKey(md *TypeMetadata, e *Entity) error {
	return &Error{Kind: KindValidation, Op: "prepare", TypeName: md.TypeName, Field: md.KeyField.Name,
		Msg: fmt.Sprintf("%s entity has no key value", e.Aspect.State)}
}

// sameKey compares key values by their canonical form.
func sameKey(a, b any) bool {
	return store.KeyString(a) == store.KeyString(b)
}
