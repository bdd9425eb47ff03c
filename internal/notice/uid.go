package notice

// UID derives the globally unique catalogue key for a notice. It is pure
// and stable: the same (source, sourceID) pair always yields the same
// string, and it is never regenerated once assigned.
func UID(source, sourceID string) string {
	return source + ":" + sourceID
}
