package storage

// prefixEnd returns the smallest key greater than every key starting
// with the prefix: the last byte below 0xFF is incremented and the key
// truncated there. A prefix of all 0xFF bytes has no finite bound and
// yields nil, which scans treat as unbounded; store keys always start
// with a keyspace letter, so that cannot happen for them.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)

	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
