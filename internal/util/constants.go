package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeImage = "image/"
)

// Upload limits.
const (
	MaxImageBytes  = 5 << 20
	MaxUploadBytes = 10 << 20
)
