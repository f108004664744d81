package lformat

import (
	"errors"
	"io"
)

var errInvalidHeader = errors.New("lformat: invalid header")

func readFull(r io.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}
