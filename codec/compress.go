package codec

import (
	"bytes"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// brotliContentTypes are the content_type values the default codec treats
// as brotli-compressed. original_source never compresses payloads; this is
// additive and only engages when a subscriber sets one of these.
var brotliContentTypes = map[string]bool{
	"application/x-br": true,
	"br":               true,
}

// maybeDecompress brotli-decompresses payload when contentType names a
// brotli encoding; otherwise it returns payload unchanged.
func maybeDecompress(contentType string, payload []byte) ([]byte, error) {
	if !brotliContentTypes[strings.ToLower(strings.TrimSpace(contentType))] {
		return payload, nil
	}
	r := brotli.NewReader(bytes.NewReader(payload))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
