package pformat

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"hash/adler32"

	"github.com/klauspost/compress/flate"
)

var pngSignature = [8]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// writeChunk appends one PNG chunk (length, type, data, CRC32-of-type+data)
// to buf.
func writeChunk(buf *bytes.Buffer, chunkType string, data []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])

	buf.WriteString(chunkType)
	buf.Write(data)

	crc := crc32.NewIEEE()
	crc.Write([]byte(chunkType))
	crc.Write(data)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc.Sum32())
	buf.Write(crcBuf[:])
}

// ihdrColorType maps numComps to PNG's IHDR color-type byte (2=RGB truecolor,
// 6=RGBA truecolor-with-alpha; this container never emits palette or
// grayscale images).
func ihdrColorType(numComps int) byte {
	if numComps == 4 {
		return 6
	}
	return 2
}

// zlibWrap wraps a raw DEFLATE stream in the 2-byte zlib header and
// trailing 4-byte Adler-32 checksum PNG's IDAT payload requires (RFC1950).
func zlibWrap(raw []byte, rawDeflate []byte) []byte {
	out := make([]byte, 0, len(rawDeflate)+6)
	out = append(out, 0x78, 0x01) // CMF=0x78 (deflate, 32K window), FLG=0x01 (no preset dict, fastest-compression hint bits)
	out = append(out, rawDeflate...)
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], adler32.Checksum(raw))
	return append(out, trailer[:]...)
}

// EncodePNG bundles the reconstructed-but-RDO'd scanline stream (one
// filter tag byte followed by bpp*W filtered bytes, per scanline) into a
// complete PNG file, deflating the IDAT payload with klauspost/compress's
// flate encoder at compressionLevel.
func EncodePNG(w, h, numComps int, filterTaggedScanlines []byte, compressionLevel int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(pngSignature[:])

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = ihdrColorType(numComps)
	ihdr[10] = 0 // compression method
	ihdr[11] = 0 // filter method
	ihdr[12] = 0 // interlace method
	writeChunk(&buf, "IHDR", ihdr)

	var deflated bytes.Buffer
	fw, err := flate.NewWriter(&deflated, compressionLevel)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(filterTaggedScanlines); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}

	idat := zlibWrap(filterTaggedScanlines, deflated.Bytes())
	writeChunk(&buf, "IDAT", idat)

	writeChunk(&buf, "IEND", nil)
	return buf.Bytes(), nil
}
