package qformat

import (
	"bytes"

	"github.com/xfmoulet/qoi"

	"github.com/richgel999/rdopng/internal/rdoimage"
)

// Decode parses a format-Q file written by Encode back into an Image,
// delegating the opcode-stream decoding to xfmoulet/qoi (the same QOI
// opcode set this package's encoder emits, minus the RD search).
func Decode(data []byte) (*rdoimage.Image, error) {
	img, err := qoi.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return rdoimage.FromGoImage(img), nil
}
