package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyDocument     = errors.New("document appears to be empty")
)

// ExtractionError wraps a failure to decode a document payload.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s text: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type format string

const (
	formatText format = "text"
	formatPDF  format = "pdf"
	formatDOCX format = "docx"
	formatPPTX format = "pptx"
	formatXLSX format = "xlsx"
	formatAny  format = "unknown"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func detectFormat(filename, contentType string) format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".mdx":
		return formatText
	case ".pdf":
		return formatPDF
	case ".docx":
		return formatDOCX
	case ".pptx":
		return formatPPTX
	case ".xlsx":
		return formatXLSX
	}

	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch {
	case strings.HasPrefix(ct, "text/"):
		return formatText
	case ct == mimePDF:
		return formatPDF
	case ct == mimeDOCX:
		return formatDOCX
	case ct == mimePPTX:
		return formatPPTX
	case ct == mimeXLSX:
		return formatXLSX
	}
	return formatAny
}

// ExtractText turns a document payload into plain text. The format is taken
// from the filename extension first, then from the content type. Unknown
// formats are accepted when they decode as UTF-8.
func ExtractText(content []byte, filename, contentType string) (string, error) {
	f := detectFormat(filename, contentType)
	log.Debug().Str("filename", filename).Str("format", string(f)).Int("bytes", len(content)).Msg("Extracting text")

	switch f {
	case formatText:
		if !utf8.Valid(content) {
			return "", &ExtractionError{Format: string(f), Err: errors.New("invalid UTF-8")}
		}
		return string(content), nil
	case formatPDF:
		return extractPDF(content)
	case formatDOCX:
		return extractDOCX(content)
	case formatPPTX:
		return extractPPTX(content)
	case formatXLSX:
		return extractXLSX(content)
	default:
		if !utf8.Valid(content) {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
		}
		return string(content), nil
	}
}

func extractPDF(content []byte) (text string, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &ExtractionError{Format: string(formatPDF), Err: fmt.Errorf("%v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &ExtractionError{Format: string(formatPDF), Err: err}
	}

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Format: string(formatPDF), Err: fmt.Errorf("page %d: %w", i, err)}
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("[Page %d]\n%s", i, pageText))
	}
	return strings.Join(pages, "\n\n"), nil
}

func extractDOCX(content []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &ExtractionError{Format: string(formatDOCX), Err: err}
	}
	defer r.Close()

	paragraphs, err := wordParagraphs(r.Editable().GetContent())
	if err != nil {
		return "", &ExtractionError{Format: string(formatDOCX), Err: err}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// wordParagraphs collects the text runs of every w:p element in a
// WordprocessingML body. Empty paragraphs are dropped.
func wordParagraphs(body string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
		depth      int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				depth++
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br", "cr":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				depth--
				if depth == 0 {
					if p := strings.TrimSpace(current.String()); p != "" {
						paragraphs = append(paragraphs, p)
					}
					current.Reset()
				}
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &ExtractionError{Format: string(formatPPTX), Err: err}
	}

	var slides []*zip.File
	for _, file := range zr.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slides = append(slides, file)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i].Name) < slideNumber(slides[j].Name) })

	var parts []string
	for i, file := range slides {
		rc, err := file.Open()
		if err != nil {
			return "", &ExtractionError{Format: string(formatPPTX), Err: err}
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", &ExtractionError{Format: string(formatPPTX), Err: err}
		}
		text, err := slideText(data)
		if err != nil {
			return "", &ExtractionError{Format: string(formatPPTX), Err: fmt.Errorf("%s: %w", file.Name, err)}
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Slide %d]\n%s", i+1, text))
	}
	return strings.Join(parts, "\n\n"), nil
}

func slideNumber(name string) int {
	var n int
	fmt.Sscanf(strings.TrimPrefix(name, "ppt/slides/slide"), "%d", &n)
	return n
}

// slideText joins the decoded <a:t> runs of a slide with single spaces.
func slideText(slide []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(slide))
	var (
		runs   []string
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
				runs = append(runs, "")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				runs[len(runs)-1] += string(t)
			}
		}
	}
	return strings.Join(runs, " "), nil
}

func extractXLSX(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", &ExtractionError{Format: string(formatXLSX), Err: err}
	}
	defer f.Close()

	var sheets []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", &ExtractionError{Format: string(formatXLSX), Err: fmt.Errorf("sheet %s: %w", sheetName, err)}
		}
		if len(rows) == 0 {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		sheets = append(sheets, strings.TrimRight(text.String(), "\n"))
	}
	return strings.Join(sheets, "\n\n"), nil
}
