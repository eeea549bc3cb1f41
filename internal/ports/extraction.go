// Package ports defines the interfaces between the decision engine and its
// external collaborators. Implementations live under infrastructure/ and are
// wired together by the application layer.
package ports

import (
	"context"

	"github.com/foodgenie/foodgenie/internal/domain"
)

// LabelExtractor defines the interface for extracting nutrition facts from a
// label photograph. Implementations wrap an OCR service and parse its output
// into candidate nutrient tokens.
type LabelExtractor interface {
	// ExtractLabel runs OCR over the image bytes and returns the candidate
	// nutrient tokens found, in reading order.
	//
	// An empty extraction is a valid result, not an error: it means the
	// image contained no recognizable nutrition facts. Implementations
	// return an error only for transport or service failures, and must
	// honor ctx cancellation.
	ExtractLabel(ctx context.Context, image []byte) (domain.OCRExtraction, error)
}

// ProductLookup defines the interface for resolving a decoded barcode to a
// structured product record. Implementations wrap a product database such as
// Open Food Facts.
type ProductLookup interface {
	// Lookup fetches the product record for the given barcode.
	//
	// It returns ErrProductNotFound when the database has no record for the
	// barcode; any other error indicates a transport or service failure.
	// Implementations must honor ctx cancellation.
	Lookup(ctx context.Context, barcode string) (*domain.BarcodeRecord, error)
}
