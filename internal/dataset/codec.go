package dataset

import (
	"encoding/binary"
	"math"

	"github.com/gannet-bio/gannet/internal/gene"
)

// Blob layout: little-endian float32 for numeric channels, one byte per
// element for labels and the validity mask. The logical schema, not this
// byte layout, is the compatibility contract.

func encodeFloats(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func decodeFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func encodeFloat4s(vals [][4]float32) []byte {
	out := make([]byte, 16*len(vals))
	for i, v := range vals {
		for j, f := range v {
			binary.LittleEndian.PutUint32(out[16*i+4*j:], math.Float32bits(f))
		}
	}
	return out
}

func decodeFloat4s(b []byte) [][4]float32 {
	out := make([][4]float32, len(b)/16)
	for i := range out {
		for j := 0; j < 4; j++ {
			out[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(b[16*i+4*j:]))
		}
	}
	return out
}

func encodeFloat3s(vals [][3]float32) []byte {
	out := make([]byte, 12*len(vals))
	for i, v := range vals {
		for j, f := range v {
			binary.LittleEndian.PutUint32(out[12*i+4*j:], math.Float32bits(f))
		}
	}
	return out
}

func decodeFloat3s(b []byte) [][3]float32 {
	out := make([][3]float32, len(b)/12)
	for i := range out {
		for j := 0; j < 3; j++ {
			out[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(b[12*i+4*j:]))
		}
	}
	return out
}

func encodeClasses(vals []gene.Class) []byte {
	out := make([]byte, len(vals))
	for i, c := range vals {
		out[i] = byte(c)
	}
	return out
}

func decodeClasses(b []byte) []gene.Class {
	out := make([]gene.Class, len(b))
	for i, v := range b {
		out[i] = gene.Class(v)
	}
	return out
}

func encodeBools(vals []bool) []byte {
	out := make([]byte, len(vals))
	for i, v := range vals {
		if v {
			out[i] = 1
		}
	}
	return out
}

func decodeBools(b []byte) []bool {
	out := make([]bool, len(b))
	for i, v := range b {
		out[i] = v == 1
	}
	return out
}
