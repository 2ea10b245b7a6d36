package blob

import (
	"context"
	"fmt"
	"os"

	s3store "iiifvault/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	IIIFVAULT_BLOB_DRIVER: fs|s3|memory (default fs)
//	IIIFVAULT_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 variables are documented in the s3 backend package.)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("IIIFVAULT_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("IIIFVAULT_BLOB_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
