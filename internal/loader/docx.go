package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/atlas-cloud/ragdex/internal/domain"
)

// DocxLoader extracts text from Office Open XML word documents.
// Rendered page breaks split the output into pages.
type DocxLoader struct{}

// NewDocxLoader creates a .docx loader.
func NewDocxLoader() *DocxLoader {
	return &DocxLoader{}
}

// Load unpacks word/document.xml and walks its runs.
func (l *DocxLoader) Load(_ context.Context, src Source) (*Document, error) {
	if len(src.Content) == 0 {
		return nil, fmt.Errorf("docx loader needs file content: %w", domain.ErrBadInput)
	}

	zr, err := zip.NewReader(bytes.NewReader(src.Content), int64(len(src.Content)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w: %w", err, domain.ErrParseFailed)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w: %w", err, domain.ErrParseFailed)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read document.xml: %w: %w", err, domain.ErrParseFailed)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("docx has no word/document.xml: %w", domain.ErrParseFailed)
	}

	pages, err := parseDocumentXML(docXML)
	if err != nil {
		return nil, err
	}

	return &Document{Title: src.Name, Pages: pages}, nil
}

// parseDocumentXML streams the document body, collecting run text and
// splitting pages at rendered page breaks.
func parseDocumentXML(data []byte) ([]Page, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var pages []Page
	var current strings.Builder
	offset := 0
	pageNumber := 1

	flushPage := func() {
		content := strings.TrimRight(current.String(), "\n")
		pages = append(pages, Page{Content: content, Number: pageNumber, Offset: offset})
		offset += len([]rune(content))
		pageNumber++
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w: %w", err, domain.ErrParseFailed)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &el); err != nil {
					return nil, fmt.Errorf("decode text run: %w: %w", err, domain.ErrParseFailed)
				}
				current.WriteString(text)
			case "br":
				if breakType(el) == "page" {
					flushPage()
				} else {
					current.WriteByte('\n')
				}
			case "lastRenderedPageBreak":
				flushPage()
			case "tab":
				current.WriteByte('\t')
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				current.WriteByte('\n')
			}
		}
	}

	if current.Len() > 0 || len(pages) == 0 {
		flushPage()
	}

	return pages, nil
}

func breakType(el xml.StartElement) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" {
			return attr.Value
		}
	}
	return ""
}
