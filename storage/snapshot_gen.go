package storage

// msgpack encoding of Snapshot in the layout produced by the msgp code generator.

import (
	"github.com/tinylib/msgp/msgp"
)

// MarshalMsg implements msgp.Marshaler
func (z *Snapshot) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	// map header, size 9
	o = msgp.AppendMapHeader(o, 9)
	o = msgp.AppendString(o, "Name")
	o = msgp.AppendString(o, z.Name)
	o = msgp.AppendString(o, "UUID")
	o = msgp.AppendString(o, z.UUID)
	o = msgp.AppendString(o, "Version")
	o = msgp.AppendString(o, z.Version)
	o = msgp.AppendString(o, "Created")
	o = msgp.AppendInt64(o, z.Created)
	o = msgp.AppendString(o, "Depth")
	o = msgp.AppendUint8(o, z.Depth)
	o = msgp.AppendString(o, "Resolution")
	o = msgp.AppendFloat32(o, z.Resolution)
	o = msgp.AppendString(o, "Size")
	o = msgp.AppendArrayHeader(o, uint32(3))
	for za0001 := range z.Size {
		o = msgp.AppendUint32(o, z.Size[za0001])
	}
	o = msgp.AppendString(o, "Palette")
	o = msgp.AppendArrayHeader(o, uint32(len(z.Palette)))
	for za0002 := range z.Palette {
		o = msgp.AppendUint32(o, z.Palette[za0002])
	}
	o = msgp.AppendString(o, "Octree")
	o = msgp.AppendBytes(o, z.Octree)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *Snapshot) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	_ = field
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "Name":
			z.Name, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Name")
				return
			}
		case "UUID":
			z.UUID, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "UUID")
				return
			}
		case "Version":
			z.Version, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Version")
				return
			}
		case "Created":
			z.Created, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Created")
				return
			}
		case "Depth":
			z.Depth, bts, err = msgp.ReadUint8Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Depth")
				return
			}
		case "Resolution":
			z.Resolution, bts, err = msgp.ReadFloat32Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Resolution")
				return
			}
		case "Size":
			var zb0002 uint32
			zb0002, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Size")
				return
			}
			if zb0002 != uint32(3) {
				err = msgp.ArrayError{Wanted: uint32(3), Got: zb0002}
				return
			}
			for za0001 := range z.Size {
				z.Size[za0001], bts, err = msgp.ReadUint32Bytes(bts)
				if err != nil {
					err = msgp.WrapError(err, "Size", za0001)
					return
				}
			}
		case "Palette":
			var zb0003 uint32
			zb0003, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Palette")
				return
			}
			if cap(z.Palette) >= int(zb0003) {
				z.Palette = (z.Palette)[:zb0003]
			} else {
				z.Palette = make([]uint32, zb0003)
			}
			for za0002 := range z.Palette {
				z.Palette[za0002], bts, err = msgp.ReadUint32Bytes(bts)
				if err != nil {
					err = msgp.WrapError(err, "Palette", za0002)
					return
				}
			}
		case "Octree":
			z.Octree, bts, err = msgp.ReadBytesBytes(bts, z.Octree)
			if err != nil {
				err = msgp.WrapError(err, "Octree")
				return
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *Snapshot) Msgsize() (s int) {
	s = 1 + 5 + msgp.StringPrefixSize + len(z.Name) +
		5 + msgp.StringPrefixSize + len(z.UUID) +
		8 + msgp.StringPrefixSize + len(z.Version) +
		8 + msgp.Int64Size +
		6 + msgp.Uint8Size +
		11 + msgp.Float32Size +
		5 + msgp.ArrayHeaderSize + (3 * (msgp.Uint32Size)) +
		8 + msgp.ArrayHeaderSize + (len(z.Palette) * (msgp.Uint32Size)) +
		7 + msgp.BytesPrefixSize + len(z.Octree)
	return
}
