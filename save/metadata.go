package save

import "strings"

// DataType is a field's declared value type.
type DataType string

const (
	DataTypeString         DataType = "String"
	DataTypeInt            DataType = "Int"
	DataTypeInt16          DataType = "Int16"
	DataTypeInt32          DataType = "Int32"
	DataTypeInt64          DataType = "Int64"
	DataTypeByte           DataType = "Byte"
	DataTypeDouble         DataType = "Double"
	DataTypeSingle         DataType = "Single"
	DataTypeDecimal        DataType = "Decimal"
	DataTypeBoolean        DataType = "Boolean"
	DataTypeDateTime       DataType = "DateTime"
	DataTypeDateTimeOffset DataType = "DateTimeOffset"
	DataTypeBinaryID       DataType = "BinaryId"
	DataTypeMongoObjectID  DataType = "MongoObjectId"
	DataTypeGUID           DataType = "Guid"
)

// AutoKeyKind selects how keys of newly added entities are generated.
type AutoKeyKind string

const (
	AutoKeyNone       AutoKeyKind = "None"
	AutoKeyRandomUUID AutoKeyKind = "RandomUuid"
	AutoKeyBinaryID   AutoKeyKind = "BinaryId"

	// autoKeyIdentity is the wire alias for AutoKeyBinaryID.
	autoKeyIdentity AutoKeyKind = "Identity"
)

// FieldMetadata describes one declared field.
type FieldMetadata struct {
	Name               string   `json:"name"`
	DataType           DataType `json:"dataType"`
	IsForeignKey       bool     `json:"isForeignKey,omitempty"`
	IsConcurrencyToken bool     `json:"isConcurrencyProperty,omitempty"`
}

// TypeMetadata describes how one entity type is persisted.
type TypeMetadata struct {
	TypeName       string          `json:"entityTypeName"`
	CollectionName string          `json:"collectionName"`
	Fields         []FieldMetadata `json:"dataProperties"`
	AutoKey        AutoKeyKind     `json:"autoGeneratedKeyType,omitempty"`

	// KeyField and ConcurrencyField are set by review.
	KeyField         *FieldMetadata `json:"-"`
	ConcurrencyField *FieldMetadata `json:"-"`

	reviewed bool
}

// Field returns the declared field with the given name.
func (m *TypeMetadata) Field(name string) (*FieldMetadata, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// review locates the key and concurrency fields and normalizes defaults.
// It is a no-op on already reviewed metadata.
func (m *TypeMetadata) review(keyField string) error {
	if m.reviewed {
		return nil
	}

	key, ok := m.Field(keyField)
	if !ok {
		return &Error{Kind: KindValidation, Op: "review metadata", TypeName: m.TypeName,
			Msg: "no key field " + keyField + " declared"}
	}
	if key.IsForeignKey {
		return &Error{Kind: KindValidation, Op: "review metadata", TypeName: m.TypeName, Field: key.Name,
			Msg: "key field must not be a foreign key"}
	}

	var concurrency *FieldMetadata
	for i := range m.Fields {
		if m.Fields[i].IsConcurrencyToken {
			concurrency = &m.Fields[i]
			break
		}
	}

	switch m.AutoKey {
	case "":
		m.AutoKey = AutoKeyNone
	case autoKeyIdentity:
		m.AutoKey = AutoKeyBinaryID
	case AutoKeyNone, AutoKeyRandomUUID, AutoKeyBinaryID:
	default:
		return &Error{Kind: KindValidation, Op: "review metadata", TypeName: m.TypeName,
			Msg: "unsupported auto-generated key kind " + string(m.AutoKey)}
	}

	if m.CollectionName == "" {
		m.CollectionName = defaultCollectionName(m.TypeName)
	}
	m.KeyField = key
	m.ConcurrencyField = concurrency
	m.reviewed = true
	return nil
}

// defaultCollectionName strips a ":#Namespace" qualifier from a type name.
func defaultCollectionName(typeName string) string {
	if i := strings.Index(typeName, ":#"); i >= 0 {
		return typeName[:i]
	}
	return typeName
}

// reviewType returns the reviewed metadata for typeName.
func reviewType(metadata map[string]*TypeMetadata, keyField, typeName string) (*TypeMetadata, error) {
	md, ok := metadata[typeName]
	if !ok || md == nil {
		return nil, &Error{Kind: KindValidation, Op: "review metadata", TypeName: typeName,
			Msg: "unknown entity type"}
	}
	if md.TypeName == "" {
		md.TypeName = typeName
	}
	if err := md.review(keyField); err != nil {
		return nil, err
	}
	return md, nil
}

// reviewMetadata reviews the metadata of every type in order.
func reviewMetadata(metadata map[string]*TypeMetadata, keyField string, order []string) error {
	for _, typeName := range order {
		if _, err := reviewType(metadata, keyField, typeName); err != nil {
			return err
		}
	}
	return nil
}
