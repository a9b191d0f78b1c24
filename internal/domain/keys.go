package domain

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "ragdex:"

const (
	// ChunkKeyPrefix prefixes chunk record hash keys: ragdex:chunks:<id>.
	ChunkKeyPrefix = KeyPrefix + "chunks:"
	// ChunkIndexName is the full-text/vector index over chunk records.
	ChunkIndexName = KeyPrefix + "chunks:idx"

	// BlobKeyPrefix prefixes raw uploaded file content keys.
	BlobKeyPrefix = KeyPrefix + "blobs:"
	// BlobMetaKeyPrefix prefixes per-file metadata hash keys.
	BlobMetaKeyPrefix = KeyPrefix + "blobs_meta:"

	// ActiveConfigKey holds the persisted active configuration document.
	ActiveConfigKey = KeyPrefix + "config:active"
)
