package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"supplychain-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrUnreadableDocument = errors.New("unreadable document")
)

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxTextRe      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	pptxTextRe      = regexp.MustCompile(`(?s)<a:t>(.*?)</a:t>`)
	pptxSlideRe     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// SupportedExtensions lists the file extensions Extract understands.
var SupportedExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx", ".txt", ".md"}

// Extract returns the document text of data, choosing the reader by the
// extension of filename. Every page that yields text is followed by a newline;
// pages without text are skipped.
func Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return ExtractPDF(bytes.NewReader(data), int64(len(data)))
	case ".docx":
		return extractDOCX(data)
	case ".pptx":
		return extractPPTX(data)
	case ".xlsx":
		return extractXLSX(data)
	case ".txt", ".md":
		var text strings.Builder
		writePage(&text, string(data))
		return text.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ExtractPDF reads every page of the PDF in order. The pdf package panics on
// some malformed inputs, so panics are reported as ErrUnreadableDocument.
func ExtractPDF(r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadableDocument, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	var out strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// image-only and damaged pages are skipped like empty ones
			log.Warn().Err(err).Int("page", i).Msg("Skipping page without extractable text")
			continue
		}
		writePage(&out, pageText)
	}

	text = out.String()
	log.Debug().Int("pages", numPages).Int("characters", utf8.RuneCountInString(text)).Msg("Extracted PDF text")
	return text, nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	defer r.Close()

	// DOCX has no pages; each paragraph is written as its own line
	var text strings.Builder
	for _, paragraph := range docxParagraphRe.FindAllString(r.Editable().GetContent(), -1) {
		writePage(&text, xmlRuns(docxTextRe, paragraph, ""))
	}
	return text.String(), nil
}

func extractPPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := pptxSlideRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var text strings.Builder
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: slide %d: %v", ErrUnreadableDocument, s.num, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: slide %d: %v", ErrUnreadableDocument, s.num, err)
		}
		writePage(&text, xmlRuns(pptxTextRe, string(content), " "))
	}
	return text.String(), nil
}

func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		if len(rows) == 0 {
			continue
		}
		var sheet strings.Builder
		sheet.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			sheet.WriteString(strings.Join(row, "\t"))
			sheet.WriteString("\n")
		}
		writePage(&text, strings.TrimSuffix(sheet.String(), "\n"))
	}
	return text.String(), nil
}

// xmlRuns concatenates the unescaped text runs matched by re.
func xmlRuns(re *regexp.Regexp, xml, sep string) string {
	var parts []string
	for _, m := range re.FindAllStringSubmatch(xml, -1) {
		parts = append(parts, html.UnescapeString(m[1]))
	}
	return strings.Join(parts, sep)
}

func writePage(out *strings.Builder, pageText string) {
	if pageText == "" {
		return
	}
	out.WriteString(pageText)
	out.WriteString(models.PageSeparator)
}
