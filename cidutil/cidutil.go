// Package cidutil derives content identifiers used to address registry
// records on disk.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// KeyPath returns a two-level relative path for a string key, sharded by the
// last two characters of the key's CID (the leading characters are the same
// for every CIDv1 raw sha2-256).
//
// Keys are hashed so that arbitrary user input (names may contain "/" or
// "..") never reaches the filesystem.
func KeyPath(key string) (string, error) {
	id, err := CIDv1RawSHA256CID([]byte(key))
	if err != nil {
		return "", err
	}
	s := id.String()
	return s[len(s)-2:] + "/" + s, nil
}
