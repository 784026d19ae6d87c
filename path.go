package broker

import "strings"

// StoragePath addresses an object inside a bucket.
type StoragePath struct {
	Bucket string
	Object string
}

// SplitPath splits "bucket/object" (optionally with a leading slash) at the
// first separator. Everything after it, slashes included, is the object path.
func SplitPath(p string) (StoragePath, error) {
	rest := strings.TrimPrefix(p, "/")

	bucket, object, found := strings.Cut(rest, "/")
	if !found {
		return StoragePath{}, newError(ErrInvalidPath, "invalid path")
	}

	return StoragePath{Bucket: bucket, Object: object}, nil
}

func (p StoragePath) String() string {
	return p.Bucket + "/" + p.Object
}
