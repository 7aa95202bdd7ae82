package craft

import (
	"bytes"
	"testing"
)

func TestSerializationFormat(t *testing.T) {
	for _, compress := range []Compression{Uncompressed, Snappy, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			format := EncodeSerializationFormat(compress, checksum)
			c, s := DecodeSerializationFormat(format)
			if c != compress || s != checksum {
				t.Errorf("format %d decoded to (%s, %s), expected (%s, %s)", format, c, s, compress, checksum)
			}
		}
	}
}

func TestSerializeData(t *testing.T) {
	data := bytes.Repeat([]byte("grid cells compress well "), 200)
	for _, compress := range []Compression{Uncompressed, Snappy, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			s, err := SerializeData(data, compress, checksum)
			if err != nil {
				t.Fatalf("%s/%s: %v", compress, checksum, err)
			}
			if compress != Uncompressed && len(s) >= len(data) {
				t.Errorf("%s did not shrink repetitive data: %d -> %d bytes", compress, len(data), len(s))
			}
			got, c, err := DeserializeData(s, true)
			if err != nil {
				t.Fatalf("%s/%s: %v", compress, checksum, err)
			}
			if c != compress {
				t.Errorf("expected compression %s, got %s", compress, c)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("%s/%s: round trip changed data", compress, checksum)
			}

			if checksum == CRC32 {
				s[len(s)-1] ^= 0x04
				if _, _, err := DeserializeData(s, true); err == nil {
					t.Errorf("%s: flipped bit not caught by checksum", compress)
				}
			}
		}
	}
}

func TestDeserializeWithoutUncompress(t *testing.T) {
	data := []byte("hello voxels hello voxels hello voxels")
	s, err := SerializeData(data, Snappy, CRC32)
	if err != nil {
		t.Fatal(err)
	}
	raw, _, err := DeserializeData(s, false)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, s[5:]) {
		t.Error("expected stored bytes when not uncompressing")
	}
}

func TestDeserializeBadInput(t *testing.T) {
	if _, _, err := DeserializeData(nil, true); err == nil {
		t.Error("expected error for empty data")
	}
	short := []byte{byte(EncodeSerializationFormat(Uncompressed, CRC32)), 1, 2}
	if _, _, err := DeserializeData(short, true); err == nil {
		t.Error("expected error for truncated checksum")
	}
	bad := []byte{byte(EncodeSerializationFormat(Compression(7), NoChecksum)), 1, 2}
	if _, _, err := DeserializeData(bad, true); err == nil {
		t.Error("expected error for unknown compression")
	}
	if _, err := SerializeData([]byte{1}, Compression(6), NoChecksum); err == nil {
		t.Error("expected error serializing with unknown compression")
	}
}

func TestParseCompression(t *testing.T) {
	tests := map[string]Compression{"": Snappy, "snappy": Snappy, "ZSTD": Zstd, "none": Uncompressed}
	for name, want := range tests {
		got, err := ParseCompression(name)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %s, %v", name, got, err)
		}
	}
	if _, err := ParseCompression("lz4"); err == nil {
		t.Error("expected error for lz4")
	}
}
