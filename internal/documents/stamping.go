package documents

import (
	"context"
	"fmt"

	"sealdesk/signing-portal/signing-portal-backend/pkg/geometry"
	"sealdesk/signing-portal/signing-portal-backend/pkg/imaging"
	"sealdesk/signing-portal/signing-portal-backend/pkg/pdf"
)

// StampService turns a signature payload and placement request into a
// stamped document.
type StampService struct {
	stamper pdf.Stamper
}

func NewStampService(stamper pdf.Stamper) *StampService {
	return &StampService{stamper: stamper}
}

// ApplySignature decodes the payload, fits the image into the requested
// box and stamps it onto the given page. Caller-side problems (undecodable
// payload, impossible geometry, page out of range) come back wrapped in
// ErrInvalidRequest; everything else is an engine failure.
func (s *StampService) ApplySignature(ctx context.Context, doc []byte, payload string, page int, box BoundingBox) ([]byte, error) {
	img, format, err := imaging.DecodeSignatureImage(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	width, height, err := s.stamper.ImageDimensions(img)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable signature image: %v", ErrInvalidRequest, err)
	}

	pageCount, err := s.stamper.PageCount(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("inspect document: %w", err)
	}
	if page < 1 || page > pageCount {
		return nil, fmt.Errorf("%w: page %d outside document (1-%d)", ErrInvalidRequest, page, pageCount)
	}

	rect, err := geometry.FitRect(float64(width), float64(height), geometry.Rect(box))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	stamped, err := s.stamper.StampImage(ctx, doc, img, format, page, rect)
	if err != nil {
		return nil, fmt.Errorf("stamp signature: %w", err)
	}
	return stamped, nil
}
