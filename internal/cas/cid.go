package cas

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ComputeCID returns the CIDv1 (raw codec, sha2-256 multihash) of data.
func ComputeCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Verify reports whether data hashes to the given CID string.
func Verify(id string, data []byte) bool {
	want, err := cid.Decode(id)
	if err != nil {
		return false
	}
	got, err := ComputeCID(data)
	if err != nil {
		return false
	}
	return got.Equals(want)
}
