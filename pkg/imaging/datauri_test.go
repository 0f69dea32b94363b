package imaging

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func encodePayload(header string, data []byte) string {
	return header + base64Marker + base64.StdEncoding.EncodeToString(data)
}

func TestDecodeSignatureImagePNG(t *testing.T) {
	raw := []byte("fake png bytes")

	data, format, err := DecodeSignatureImage(encodePayload("data:image/png;", raw))

	assert.NoError(t, err)
	assert.Equal(t, raw, data)
	assert.Equal(t, FormatPNG, format)
}

func TestDecodeSignatureImageJPEG(t *testing.T) {
	raw := []byte("fake jpeg bytes")

	data, format, err := DecodeSignatureImage(encodePayload("data:image/jpeg;", raw))

	assert.NoError(t, err)
	assert.Equal(t, raw, data)
	assert.Equal(t, FormatJPEG, format)
}

func TestDecodeSignatureImageJPGAlias(t *testing.T) {
	_, format, err := DecodeSignatureImage(encodePayload("data:image/jpg;", []byte("x")))

	assert.NoError(t, err)
	assert.Equal(t, FormatJPEG, format)
}

func TestDecodeSignatureImageUnknownHeaderDefaultsToPNG(t *testing.T) {
	_, format, err := DecodeSignatureImage(encodePayload("data:application/octet-stream;", []byte("x")))

	assert.NoError(t, err)
	assert.Equal(t, FormatPNG, format)
}

func TestDecodeSignatureImageBareHeaderDefaultsToPNG(t *testing.T) {
	_, format, err := DecodeSignatureImage(encodePayload("data:;", []byte("x")))

	assert.NoError(t, err)
	assert.Equal(t, FormatPNG, format)
}

func TestDecodeSignatureImageMissingMarker(t *testing.T) {
	_, _, err := DecodeSignatureImage("data:image/png;AAAA")

	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeSignatureImageEmptyData(t *testing.T) {
	_, _, err := DecodeSignatureImage("data:image/png;base64,")

	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeSignatureImageInvalidBase64(t *testing.T) {
	_, _, err := DecodeSignatureImage("data:image/png;base64,!!not-base64!!")

	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFormatContentType(t *testing.T) {
	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "image/jpeg", FormatJPEG.ContentType())
	assert.Equal(t, ".png", FormatPNG.Ext())
	assert.Equal(t, ".jpg", FormatJPEG.Ext())
}
