package store

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsDeleted checks if an item has an expired TTL (is soft-deleted).
func IsDeleted(item map[string]types.AttributeValue, ttlAttr string) bool {
	attr, exists := item[ttlAttr]
	if !exists {
		return false // No TTL = active
	}
	ttlNum, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// liveCondition returns the condition clause that excludes soft-deleted items.
// The caller binds #ttl in ExpressionAttributeNames.
func liveCondition() string {
	return "attribute_not_exists(#ttl)"
}

// nowValue returns the current Unix time as a DynamoDB number.
func nowValue() types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)}
}
