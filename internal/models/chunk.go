package models

// BlobChunk is one piece of a blob kept on an image host. Chunks of a blob
// are read back in ChunkOrder.
type BlobChunk struct {
	ID         int64  `json:"-" gorm:"primaryKey;autoIncrement"`
	BlobKey    string `json:"blob_key" gorm:"not null;uniqueIndex:idx_blob_chunk_order"`
	ChunkOrder int    `json:"chunk_order" gorm:"not null;uniqueIndex:idx_blob_chunk_order"`
	ImagePath  string `json:"image_path" gorm:"not null"`
}
