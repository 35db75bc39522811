package storage

import "time"

// DefaultSignedURITTL is how long a signed URI stays valid when no TTL is given.
const DefaultSignedURITTL = 15 * time.Minute

// PutOptions are the optional arguments of Put.
type PutOptions struct {
	// Override writes even when the key already exists. Without it Put checks
	// existence first and fails with facade.ErrAlreadyExists.
	Override bool
	// Bucket overrides the default bucket.
	Bucket string
}

// ObjectOptions are the optional arguments of Get and Exists.
type ObjectOptions struct {
	Bucket string
}

// DeleteOptions are the optional arguments of Delete.
type DeleteOptions struct {
	// CheckExists makes Delete fail with facade.ErrNotFound for a missing key.
	CheckExists bool
	Bucket      string
}

// SignOptions are the optional arguments of SignedURI.
type SignOptions struct {
	// TTL defaults to DefaultSignedURITTL.
	TTL    time.Duration
	Bucket string
}

func (o SignOptions) ttl() time.Duration {
	if o.TTL <= 0 {
		return DefaultSignedURITTL
	}
	return o.TTL
}
