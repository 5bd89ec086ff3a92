package delivery

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type encoder struct {
	contentType     string
	contentEncoding string
	marshal         func(v any) ([]byte, error)
	compress        func(data []byte) ([]byte, error)
}

func newEncoder(encoding, compression string) (*encoder, error) {
	enc := &encoder{}

	switch encoding {
	case "", "json":
		enc.contentType = "application/json"
		enc.marshal = json.Marshal
	case "cbor":
		enc.contentType = "application/cbor"
		enc.marshal = cbor.Marshal
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}

	switch compression {
	case "", "none":
	case "gzip":
		enc.contentEncoding = "gzip"
		enc.compress = gzipBytes
	case "zstd":
		zw, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		enc.contentEncoding = "zstd"
		enc.compress = func(data []byte) ([]byte, error) {
			return zw.EncodeAll(data, nil), nil
		}
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}

	return enc, nil
}

func (e *encoder) encode(v any) ([]byte, error) {
	body, err := e.marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if e.compress == nil {
		return body, nil
	}
	compressed, err := e.compress(body)
	if err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	return compressed, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
