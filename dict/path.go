package dict

// SharedPrefix and PrivatePrefix are the two path-class sentinels from
// §3 "Path". Their identities are fixed at the embedding level (§6); these
// defaults match original_source's DICT_PATH_SHARED/DICT_PATH_PRIVATE.
const (
	SharedPrefix  = "shared"
	PrivatePrefix = "priv"
)

// IsPrivatePath reports whether path's first byte is the private-prefix
// sentinel, i.e. add_username should be true for this key. dict-sql.c keys
// off key[0] alone (DICT_PATH_PRIVATE[0]), not the full first segment.
func IsPrivatePath(path string) bool {
	return path != "" && path[0] == PrivatePrefix[0]
}
