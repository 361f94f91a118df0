// Package storagepath maps owner scopes to object-store addresses and
// classifies stored-object URLs as tenant-local or federated. All
// functions are pure; tenant isolation depends on them being exact.
package storagepath

import (
	"fmt"
	"net/url"
	"strings"

	"docindex/internal/model"
)

// SourceType classifies where a stored object lives.
type SourceType string

const (
	SourceLocal     SourceType = "local"
	SourceFederated SourceType = "federated"
)

const (
	bucketPrefix      = "tenant-"
	usersSegment      = "users"
	sharedSegment     = "shared"
	collectionSegment = "collections"
	objectExt         = ".pdf"
)

// Bucket returns the per-tenant bucket name.
func Bucket(tenantID string) string {
	return bucketPrefix + tenantID
}

// Resolve maps (scope, document id) to a bucket and object key. Exactly
// one of four key shapes applies:
//
//	private, collection:  users/{user}/collections/{coll}/{doc}.pdf
//	private:              users/{user}/{doc}.pdf
//	shared, collection:   shared/collections/{coll}/{doc}.pdf
//	shared:               shared/{doc}.pdf
func Resolve(scope model.OwnerScope, documentID string) (bucket, key string, err error) {
	if scope.TenantID == "" || documentID == "" {
		return "", "", fmt.Errorf("%w: tenant and document id required", model.ErrValidation)
	}
	if scope.Shared && scope.UserID != "" || !scope.Shared && scope.UserID == "" {
		return "", "", model.ErrInvalidScope
	}

	object := documentID + objectExt
	switch {
	case !scope.Shared && scope.Collection != "":
		key = strings.Join([]string{usersSegment, scope.UserID, collectionSegment, scope.Collection, object}, "/")
	case !scope.Shared:
		key = strings.Join([]string{usersSegment, scope.UserID, object}, "/")
	case scope.Collection != "":
		key = strings.Join([]string{sharedSegment, collectionSegment, scope.Collection, object}, "/")
	default:
		key = strings.Join([]string{sharedSegment, object}, "/")
	}
	return Bucket(scope.TenantID), key, nil
}

// Parse is the inverse of Resolve: it recovers the owner scope and
// document id from a bucket and object key.
func Parse(bucket, key string) (model.OwnerScope, string, error) {
	if !strings.HasPrefix(bucket, bucketPrefix) {
		return model.OwnerScope{}, "", fmt.Errorf("%w: unrecognized bucket %q", model.ErrValidation, bucket)
	}
	tenantID := strings.TrimPrefix(bucket, bucketPrefix)

	parts := strings.Split(key, "/")
	last := parts[len(parts)-1]
	if !strings.HasSuffix(last, objectExt) {
		return model.OwnerScope{}, "", fmt.Errorf("%w: unrecognized object key %q", model.ErrValidation, key)
	}
	documentID := strings.TrimSuffix(last, objectExt)

	var scope model.OwnerScope
	var err error
	switch {
	case len(parts) == 5 && parts[0] == usersSegment && parts[2] == collectionSegment:
		scope, err = model.NewOwnerScope(tenantID, parts[1], parts[3], false)
	case len(parts) == 3 && parts[0] == usersSegment:
		scope, err = model.NewOwnerScope(tenantID, parts[1], "", false)
	case len(parts) == 4 && parts[0] == sharedSegment && parts[1] == collectionSegment:
		scope, err = model.NewOwnerScope(tenantID, "", parts[2], true)
	case len(parts) == 2 && parts[0] == sharedSegment:
		scope, err = model.NewOwnerScope(tenantID, "", "", true)
	default:
		return model.OwnerScope{}, "", fmt.Errorf("%w: unrecognized object key %q", model.ErrValidation, key)
	}
	if err != nil {
		return model.OwnerScope{}, "", err
	}
	return scope, documentID, nil
}

// Classify decides whether a stored-object URL belongs to this
// deployment's own object store or to a federated source. Ambiguity
// fails closed: unparseable URLs or empty hostnames are rejected rather
// than forwarded.
func Classify(rawURL string, localHosts []string) (SourceType, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: unparseable url: %v", model.ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported url scheme %q", model.ErrValidation, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: url has no host", model.ErrValidation)
	}
	for _, local := range localHosts {
		if strings.EqualFold(host, local) {
			return SourceLocal, nil
		}
	}
	return SourceFederated, nil
}

// SplitObjectURL extracts the bucket and object key from a local
// store URL of the form http://host:port/bucket/key...
func SplitObjectURL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("%w: unparseable url: %v", model.ErrValidation, err)
	}
	path := strings.TrimPrefix(u.Path, "/")
	bucket, key, found := strings.Cut(path, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: url path %q has no bucket/key", model.ErrValidation, u.Path)
	}
	return bucket, key, nil
}
