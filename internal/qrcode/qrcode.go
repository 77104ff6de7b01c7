// Package qrcode shares single contacts through QR codes: it renders a contact envelope into a
// monochrome image and decodes scanned frames back into the envelope text.
package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"
	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// DefaultSize is the default edge length of a rendered QR code in pixels.
const DefaultSize = 512

// Margin is the quiet zone around the symbol in modules.
const Margin = 2

var (
	// ErrBlankContent is returned when there is nothing to encode.
	ErrBlankContent = errors.New("content is blank")
	// ErrEncode is returned when the content cannot be rendered, e.g. because it is too long.
	ErrEncode = errors.New("could not encode QR code")
	// ErrNoCode is returned when a frame does not contain a readable QR code.
	ErrNoCode = errors.New("no QR code found")
)

// Encode renders the content as a square QR code of exactly size x size pixels. The error
// correction level is Q, which survives roughly a quarter of the symbol being smudged or covered.
// ErrEncode is returned if the symbol and its quiet zone need more than size pixels.
func Encode(content string, size int) (*image.Gray, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrBlankContent
	}
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_ERROR_CORRECTION: decoder.ErrorCorrectionLevel_Q,
		gozxing.EncodeHintType_CHARACTER_SET:    "UTF-8",
		gozxing.EncodeHintType_MARGIN:           Margin,
	}
	matrix, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, size, size, hints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	width, height := matrix.GetWidth(), matrix.GetHeight()
	if width != size || height != size {
		return nil, fmt.Errorf("%w: symbol needs %d pixels, %d requested", ErrEncode, width, size)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if matrix.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img, nil
}

// EncodeContact renders the envelope of the contact as a QR code.
func EncodeContact(c model.Contact, size int) (*image.Gray, error) {
	payload, err := EncodeEnvelope(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return Encode(string(payload), size)
}

// EncodePNG renders the contact as a QR code and returns the PNG bytes.
func EncodePNG(c model.Contact, size int) ([]byte, error) {
	img, err := EncodeContact(c, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Decoder detects QR codes in still frames. It is safe for concurrent use; every call works on
// its own reader.
type Decoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewDecoder creates a decoder that only looks for QR codes.
func NewDecoder() *Decoder {
	return &Decoder{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER:       true,
			gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE},
		},
	}
}

// Decode returns the text of the QR code in the frame. ErrNoCode is returned when the frame does
// not contain a readable code.
func (d *Decoder) Decode(frame image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return result.GetText(), nil
}
