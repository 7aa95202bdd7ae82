/*
	This file supports serialization/deserialization and compression of data.
*/

package craft

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression is the format of compression for storing data.
// NOTE: Should be no more than 8 (3 bits) of compression types.
type Compression uint8

const (
	Uncompressed Compression = iota
	Snappy
	Zstd
)

func (compress Compression) String() string {
	switch compress {
	case Uncompressed:
		return "No compression"
	case Snappy:
		return "Go Snappy compression"
	case Zstd:
		return "Zstandard compression"
	default:
		return "Unknown compression"
	}
}

// ParseCompression returns the compression named in a config file: "none", "snappy" or
// "zstd".  An empty name means Snappy.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return Snappy, nil
	case "none", "uncompressed":
		return Uncompressed, nil
	case "zstd":
		return Zstd, nil
	default:
		return Uncompressed, fmt.Errorf("unknown compression %q", name)
	}
}

// Checksum is the type of checksum employed for error checking stored data.
// NOTE: Should be no more than 4 (2 bits) of checksum types.
type Checksum uint8

const (
	NoChecksum Checksum = iota
	CRC32
)

func (checksum Checksum) String() string {
	switch checksum {
	case NoChecksum:
		return "No checksum"
	case CRC32:
		return "CRC32 checksum"
	default:
		return "Unknown checksum"
	}
}

// SerializationFormat is a single byte combining both compression and checksum methods.
type SerializationFormat uint8

func EncodeSerializationFormat(compress Compression, checksum Checksum) SerializationFormat {
	a := (uint8(compress) & 0x07) << 5
	b := (uint8(checksum) & 0x03) << 3
	return SerializationFormat(a | b)
}

func DecodeSerializationFormat(s SerializationFormat) (compress Compression, checksum Checksum) {
	compress = Compression(uint8(s) >> 5)
	checksum = Checksum((uint8(s) >> 3) & 0x03)
	return
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// zstdCodec returns process-wide zstd coders.  EncodeAll and DecodeAll are safe for
// concurrent use.
func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// SerializeData serializes a slice of bytes using optional compression, checksum.
// The result is a format byte, an optional little-endian CRC32 of the stored bytes, then
// the possibly compressed data.
func SerializeData(data []byte, compress Compression, checksum Checksum) ([]byte, error) {
	var buffer bytes.Buffer

	// Store the requested compression and checksum
	buffer.WriteByte(byte(EncodeSerializationFormat(compress, checksum)))

	var byteData []byte
	switch compress {
	case Uncompressed:
		byteData = data
	case Snappy:
		byteData = snappy.Encode(nil, data)
	case Zstd:
		enc, _, err := zstdCodec()
		if err != nil {
			return nil, err
		}
		byteData = enc.EncodeAll(data, nil)
	default:
		return nil, fmt.Errorf("illegal compression (%s) during serialization", compress)
	}

	switch checksum {
	case NoChecksum:
	case CRC32:
		var crc [4]byte
		binary.LittleEndian.PutUint32(crc[:], crc32.ChecksumIEEE(byteData))
		buffer.Write(crc[:])
	default:
		return nil, fmt.Errorf("illegal checksum (%s) during serialization", checksum)
	}

	// The data is written last, after any checksum, so no length is needed.
	buffer.Write(byteData)
	return buffer.Bytes(), nil
}

// DeserializeData deserializes a slice of bytes using stored compression, checksum.
// If uncompress parameter is false, the data is not uncompressed.
func DeserializeData(s []byte, uncompress bool) (data []byte, compress Compression, err error) {
	if len(s) == 0 {
		err = fmt.Errorf("no serialization format byte in empty data")
		return
	}
	var checksum Checksum
	compress, checksum = DecodeSerializationFormat(SerializationFormat(s[0]))
	cdata := s[1:]

	switch checksum {
	case NoChecksum:
	case CRC32:
		if len(cdata) < 4 {
			err = fmt.Errorf("data too short (%d bytes) to hold CRC32 checksum", len(s))
			return
		}
		stored := binary.LittleEndian.Uint32(cdata[:4])
		cdata = cdata[4:]
		if computed := crc32.ChecksumIEEE(cdata); computed != stored {
			err = fmt.Errorf("bad checksum.  Stored %x got %x", stored, computed)
			return
		}
	default:
		err = fmt.Errorf("illegal checksum (%d) in deserializing data", checksum)
		return
	}

	if !uncompress {
		data = cdata
		return
	}
	switch compress {
	case Uncompressed:
		data = cdata
	case Snappy:
		data, err = snappy.Decode(nil, cdata)
	case Zstd:
		var dec *zstd.Decoder
		if _, dec, err = zstdCodec(); err != nil {
			return
		}
		data, err = dec.DecodeAll(cdata, nil)
	default:
		err = fmt.Errorf("illegal compression format (%d) in deserialization", compress)
	}
	return
}
