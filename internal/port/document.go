package port

import "context"

// DocumentConverter turns an office file into a PDF and returns the PDF path.
type DocumentConverter interface {
	ConvertToPDF(ctx context.Context, inputPath string) (string, error)
}

// OCRPage is the structured content of one page.
type OCRPage struct {
	Number  int
	Content string
}

// OCRResult holds the text produced by the OCR/structuring service. Pages is
// populated when the service returned page chunks; Text otherwise.
type OCRResult struct {
	Text  string
	Pages []OCRPage
}

// DocumentOCR submits a PDF to the OCR/structuring service.
type DocumentOCR interface {
	Parse(ctx context.Context, pdfPath string) (*OCRResult, error)
}

// DocumentNormalizer produces the canonical page-marked text of an upload.
type DocumentNormalizer interface {
	Normalize(ctx context.Context, path string) (string, error)
}

// TokenCounter counts model tokens of a text.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}
