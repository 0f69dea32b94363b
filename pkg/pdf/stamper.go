// Package pdf wraps the PDF engine used to stamp signature images onto
// documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"sealdesk/signing-portal/signing-portal-backend/pkg/geometry"
	"sealdesk/signing-portal/signing-portal-backend/pkg/imaging"
)

// Stamper renders signature images onto PDF documents.
type Stamper interface {
	// ImageDimensions reports the intrinsic pixel size of an encoded image.
	ImageDimensions(img []byte) (width, height int, err error)

	// PageCount reports the number of pages in a PDF document.
	PageCount(ctx context.Context, doc []byte) (int, error)

	// StampImage draws img into rect on the given 1-based page and returns
	// the re-serialized document. rect is in page points with a lower-left
	// origin and must already have the image's aspect ratio.
	StampImage(ctx context.Context, doc, img []byte, format imaging.Format, page int, rect geometry.Rect) ([]byte, error)
}

type pdfcpuStamper struct {
	conf *model.Configuration
}

// NewStamper returns the pdfcpu-backed Stamper.
func NewStamper() Stamper {
	return &pdfcpuStamper{conf: model.NewDefaultConfiguration()}
}

func (s *pdfcpuStamper) ImageDimensions(img []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func (s *pdfcpuStamper) PageCount(ctx context.Context, doc []byte) (int, error) {
	count, err := pdfapi.PageCount(bytes.NewReader(doc), s.conf)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return count, nil
}

func (s *pdfcpuStamper) StampImage(ctx context.Context, doc, img []byte, format imaging.Format, page int, rect geometry.Rect) ([]byte, error) {
	width, _, err := s.ImageDimensions(img)
	if err != nil {
		return nil, err
	}

	// pdfcpu reads watermark images from disk.
	tmp, err := os.CreateTemp("", "signature-*"+format.Ext())
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(img); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}

	wm, err := pdfcpu.ParseImageWatermarkDetails(tmp.Name(), "pos:full, rot:0, op:1", true, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("build signature stamp: %w", err)
	}

	// One image pixel renders as one point at scale 1, so this factor pins
	// the stamp to the fitted rectangle. The parser caps scale at 1.0, so
	// upscaling has to go through the fields directly. Offsets are absolute
	// from the page's lower-left corner.
	wm.Scale = rect.Width / float64(width)
	wm.ScaleAbs = true
	wm.Dx = rect.X
	wm.Dy = rect.Y

	var out bytes.Buffer
	if err := pdfapi.AddWatermarks(bytes.NewReader(doc), &out, []string{strconv.Itoa(page)}, wm, s.conf); err != nil {
		return nil, fmt.Errorf("apply signature stamp: %w", err)
	}

	return out.Bytes(), nil
}
