package db

import (
	"encoding/binary"
	"math"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// EncodeVector serializes a vector to the little-endian float32 blob format
// the FT vector index expects.
func EncodeVector(v domain.Vector) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector deserializes a float32 blob back into a vector. Returns nil
// for blobs of invalid length.
func DecodeVector(s string) domain.Vector {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make(domain.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
