package redis

// Key prefixes for primary entity storage.
const (
	prefixDelivery = "beacon:del:"
	prefixDLQ      = "beacon:dlq:"
)

// Key names for sorted set indexes.
const (
	zDeliveryAll  = "beacon:z:del:all"     // scored by creation time
	zDeliveryPend = "beacon:z:del:pending" // scored by next attempt time
	zDLQAll       = "beacon:z:dlq:all"     // scored by failure time
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
