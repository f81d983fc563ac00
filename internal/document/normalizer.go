package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"planextract/internal/domain"
	"planextract/internal/llm"
	"planextract/internal/metrics"
	"planextract/internal/port"
)

var (
	tableRe          = regexp.MustCompile(`(?is)<table[^>]*>.*?</table>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// convertible lists the office extensions sent through PDF conversion.
var convertible = map[string]bool{
	"doc":  true,
	"docx": true,
	"xls":  true,
	"xlsx": true,
	"xlsm": true,
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Normalizer produces the canonical text of an uploaded document.
// It implements port.DocumentNormalizer.
type Normalizer struct {
	converter port.DocumentConverter
	ocr       port.DocumentOCR
	tables    *md.Converter
}

// NewNormalizer creates a Normalizer. With tablesAsMarkdown, HTML tables in
// the OCR output are rewritten as markdown tables.
func NewNormalizer(converter port.DocumentConverter, ocr port.DocumentOCR, tablesAsMarkdown bool) *Normalizer {
	n := &Normalizer{converter: converter, ocr: ocr}
	if tablesAsMarkdown {
		c := md.NewConverter("", true, nil)
		c.Use(plugin.GitHubFlavored())
		n.tables = c
	}
	return n
}

// Normalize converts path to PDF when needed, runs OCR and returns the
// canonical text. Equal inputs always yield byte-identical output.
func (n *Normalizer) Normalize(ctx context.Context, path string) (string, error) {
	start := time.Now()
	defer metrics.ObserveStage("normalize", start)

	pdfPath, converted, err := n.toPDF(ctx, path)
	if err != nil {
		return "", err
	}
	if converted {
		defer func() { _ = os.Remove(pdfPath) }()
	}
	zap.L().Info("document.Normalizer.Normalize: PDF ready", zap.String("file", filepath.Base(path)), zap.Bool("converted", converted))

	res, err := n.ocr.Parse(ctx, pdfPath)
	if err != nil {
		return "", fmt.Errorf("parsing document: %w", err)
	}

	text := res.Text
	if n.tables != nil {
		text = n.rewriteTables(text)
	}
	canonical := llm.CanonicalDocument(text)

	zap.L().Info("document.Normalizer.Normalize: canonical text built",
		zap.Int("pages", len(res.Pages)),
		zap.Int("bytes", len(canonical)),
	)
	return canonical, nil
}

func (n *Normalizer) toPDF(ctx context.Context, path string) (string, bool, error) {
	ext := Ext(path)
	if ext == "pdf" {
		return path, false, nil
	}
	if !convertible[ext] {
		return "", false, fmt.Errorf("%w: .%s", domain.ErrUnsupportedType, ext)
	}
	if ext == "xlsx" || ext == "xlsm" {
		if err := preflightWorkbook(path); err != nil {
			return "", false, err
		}
	}
	pdfPath, err := n.converter.ConvertToPDF(ctx, path)
	if err != nil {
		return "", false, fmt.Errorf("converting to pdf: %w", err)
	}
	return pdfPath, true, nil
}

// preflightWorkbook rejects workbooks that cannot be opened or hold no
// sheets before paying for a remote conversion.
func preflightWorkbook(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("%w: workbook cannot be opened: %v", domain.ErrUnsupportedType, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("%w: workbook has no sheets", domain.ErrUnsupportedType)
	}
	zap.L().Debug("document.preflightWorkbook: workbook ok", zap.Strings("sheets", sheets))
	return nil
}

func (n *Normalizer) rewriteTables(text string) string {
	out := tableRe.ReplaceAllStringFunc(text, func(table string) string {
		converted, err := n.tables.ConvertString(table)
		if err != nil {
			zap.L().Warn("document.Normalizer.rewriteTables: keeping html table", zap.Error(err))
			return table
		}
		return "\n" + strings.TrimSpace(converted) + "\n"
	})
	return excessiveLinesRe.ReplaceAllString(out, "\n\n\n")
}
