// Package imaging decodes the signature image payloads submitted by
// signers.
package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload reports a signature payload that is not a decodable
// base64 data URI.
var ErrMalformedPayload = errors.New("imaging: malformed signature image payload")

// Format identifies the pixel format of a decoded signature image.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

const base64Marker = "base64,"

// DecodeSignatureImage decodes a data URI payload into raw image bytes and
// the format its header declares. Headers naming image/jpeg (or image/jpg)
// decode as JPEG; every other header, recognized or not, decodes as PNG.
func DecodeSignatureImage(payload string) ([]byte, Format, error) {
	marker := strings.Index(payload, base64Marker)
	if marker < 0 {
		return nil, "", fmt.Errorf("%w: missing %q marker", ErrMalformedPayload, base64Marker)
	}

	encoded := payload[marker+len(base64Marker):]
	if encoded == "" {
		return nil, "", fmt.Errorf("%w: empty image data", ErrMalformedPayload)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid base64: %v", ErrMalformedPayload, err)
	}

	format := FormatPNG
	header := payload[:marker]
	if strings.Contains(header, "image/jpeg") || strings.Contains(header, "image/jpg") {
		format = FormatJPEG
	}

	return data, format, nil
}
