package interfaces

import "context"

// PDFService handles PDF generation from various formats
type PDFService interface {
	// ConvertMarkdownToPDF converts markdown content to a PDF byte slice
	ConvertMarkdownToPDF(markdown, title string) ([]byte, error)
}

// PDFExtractor extracts text content from PDF documents.
type PDFExtractor interface {
	// ExtractText extracts all text content from an in-memory PDF.
	// Returns the full text concatenated from all pages.
	ExtractText(ctx context.Context, data []byte) (string, error)
}
