package bus

import (
	"encoding/binary"
	"hash/fnv"
)

// Partition computes the routing key for an aggregate ID. All events for a
// given item always hash to the same partition, so per-item order in the
// store is preserved on the bus (spec.md §4.2, §5).
func Partition(aggregateID uint64, partitions int) int {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], aggregateID)

	h := fnv.New32a()
	h.Write(key[:])
	return int(h.Sum32() % uint32(partitions))
}
