package store

// DynamoConfig holds configuration for DynamoStore.
type DynamoConfig struct {
	// TablePrefix is prepended to every collection name to form the table name.
	// Default: "" (collection name is the table name)
	TablePrefix string

	// VerifyTables makes Collection call DescribeTable once per table and fail
	// with ErrCollectionNotFound when the table is missing.
	// Default: false
	VerifyTables bool

	// SoftDelete makes Remove set the TTL attribute instead of deleting the item.
	// Updates and removals never match soft-deleted items.
	// Default: false
	SoftDelete bool

	// TTLAttribute is the attribute used for soft deletes.
	// Default: "ttl"
	TTLAttribute string
}

// DefaultDynamoConfig returns defaults for hard deletes against unprefixed tables.
func DefaultDynamoConfig() DynamoConfig {
	return DynamoConfig{
		TTLAttribute: "ttl",
	}
}

// validate fills in defaults for unset values.
func (c *DynamoConfig) validate() {
	if c.TTLAttribute == "" {
		c.TTLAttribute = "ttl"
	}
}
