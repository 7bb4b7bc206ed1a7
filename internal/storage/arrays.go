package storage

import "github.com/jackc/pgtype"

// denseIDs drops NULL slots and repeated ids from a bigint[] column value,
// keeping the first occurrence order
func denseIDs(arr pgtype.Int8Array) []int64 {
	ids := make([]int64, 0, len(arr.Elements))
	if arr.Status != pgtype.Present {
		return ids
	}

	seen := make(map[int64]struct{}, len(arr.Elements))
	for _, el := range arr.Elements {
		if el.Status != pgtype.Present {
			continue
		}
		if _, ok := seen[el.Int]; ok {
			continue
		}
		seen[el.Int] = struct{}{}
		ids = append(ids, el.Int)
	}

	return ids
}
