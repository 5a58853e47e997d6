package metadata

// --- SQLite Keys ---
// 这些键用于 metadata 表的 key 列。
const (
	// LastSnapshotFetchedAtKey 存储最近一次成功存档的快照的拉取时间 (RFC3339Nano)。
	LastSnapshotFetchedAtKey = "last_snapshot_fetched_at"

	// LastSnapshotChecksumKey 存储最近一次存档的快照原文的 SHA-256。
	LastSnapshotChecksumKey = "last_snapshot_checksum"
)

// --- Redis Keys ---
const (
	// RedisSnapshotKey 是一个 Redis String，保存最近一次成功的快照原文。
	RedisSnapshotKey = "portal:snapshot:last"

	// RedisSnapshotFetchedAtKey 保存该快照的拉取时间。
	RedisSnapshotFetchedAtKey = "portal:snapshot:fetched_at"
)
