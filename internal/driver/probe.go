package driver

import (
	"bytes"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// probeZstdSize re-compresses data with zstd and reports the ratio to
// stderr. The teacher used zstd this way during development, as a quick
// "how much is left on the table" oracle against its own block codec; -debug
// carries that habit forward for the three RDO containers.
func probeZstdSize(label string, data []byte) {
	compressed, err := zstdCompress(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rdopng: zstd probe unavailable: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "rdopng: debug: %s is %d bytes, %d after zstd re-compression (%.1f%%)\n",
		label, len(data), len(compressed), 100*float64(len(compressed))/float64(len(data)))
}

func zstdCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
