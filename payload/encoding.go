// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// maxDecodedBody caps decompressed body size so a tiny frame cannot
// expand into an unbounded allocation.
const maxDecodedBody = 16 << 20

// DecodeEncoding undoes a content-encoding announced in a content
// header or message properties. Unknown encodings pass the body through
// untouched with an error the caller may log.
func DecodeEncoding(encoding string, body []byte) ([]byte, error) {
	switch encoding {
	case "", "identity", "binary":
		return body, nil
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return body, fmt.Errorf("gzip body: %w", err)
		}
		defer r.Close()
		return readCapped(r)
	case "deflate", "zlib":
		r, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return body, fmt.Errorf("zlib body: %w", err)
		}
		defer r.Close()
		return readCapped(r)
	case "zstd":
		r, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return body, fmt.Errorf("zstd body: %w", err)
		}
		defer r.Close()
		return readCapped(r.IOReadCloser())
	default:
		return body, fmt.Errorf("unknown content encoding %q", encoding)
	}
}

func readCapped(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, maxDecodedBody+1))
	if err != nil {
		return out, fmt.Errorf("read decoded body: %w", err)
	}
	if len(out) > maxDecodedBody {
		return out[:maxDecodedBody], fmt.Errorf("decoded body exceeds %d bytes", maxDecodedBody)
	}
	return out, nil
}
