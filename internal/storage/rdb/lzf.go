package rdb

import "fmt"

// lzfDecompress expands LZF data (as produced by liblzf) to exactly outLen
// bytes.
func lzfDecompress(in []byte, outLen int) ([]byte, error) {
	out := make([]byte, 0, outLen)

	for i := 0; i < len(in); {
		ctrl := int(in[i])
		i++

		if ctrl < 1<<5 {
			// Literal run of ctrl+1 bytes.
			n := ctrl + 1
			if i+n > len(in) || len(out)+n > outLen {
				return nil, fmt.Errorf("%w: lzf literal overrun", ErrCorrupt)
			}
			out = append(out, in[i:i+n]...)
			i += n
			continue
		}

		// Back reference.
		n := ctrl >> 5
		if n == 7 {
			if i >= len(in) {
				return nil, fmt.Errorf("%w: lzf truncated", ErrCorrupt)
			}
			n += int(in[i])
			i++
		}
		if i >= len(in) {
			return nil, fmt.Errorf("%w: lzf truncated", ErrCorrupt)
		}
		ref := len(out) - (ctrl&0x1F)<<8 - 1 - int(in[i])
		i++
		n += 2

		if ref < 0 || len(out)+n > outLen {
			return nil, fmt.Errorf("%w: lzf bad back reference", ErrCorrupt)
		}
		// Byte by byte: the source may overlap the bytes being written.
		for j := 0; j < n; j++ {
			out = append(out, out[ref+j])
		}
	}

	if len(out) != outLen {
		return nil, fmt.Errorf("%w: lzf length %d, want %d", ErrCorrupt, len(out), outLen)
	}
	return out, nil
}
