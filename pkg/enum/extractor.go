package enum

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/bodgit/sevenzip"
	"github.com/ledongthuc/pdf"
)

// ExtractedContent represents text extracted from a binary file.
type ExtractedContent struct {
	Name    string // path within the archive (e.g., "xl/sharedStrings.xml")
	Content []byte // extracted text content
}

// ExtractLimits bounds archive extraction. Zero fields take defaults.
type ExtractLimits struct {
	MaxMembers    int   // members read per archive
	MaxMemberSize int64 // bytes read per member
}

// DefaultExtractLimits are applied to zero fields.
var DefaultExtractLimits = ExtractLimits{MaxMembers: 10000, MaxMemberSize: 64 << 20}

func (l ExtractLimits) withDefaults() ExtractLimits {
	if l.MaxMembers <= 0 {
		l.MaxMembers = DefaultExtractLimits.MaxMembers
	}
	if l.MaxMemberSize <= 0 {
		l.MaxMemberSize = DefaultExtractLimits.MaxMemberSize
	}
	return l
}

// extractable lists the supported extensions.
var extractable = map[string]bool{".xlsx": true, ".docx": true, ".pdf": true, ".zip": true, ".7z": true}

// IsExtractable reports whether ExtractText supports path's type.
func IsExtractable(path string) bool {
	return extractable[getExtension(path)]
}

// ExtractText extracts text from supported binary files.
func ExtractText(path string, content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	limits = limits.withDefaults()
	switch ext := getExtension(path); ext {
	case ".xlsx":
		return extractOOXML(content, limits, func(name string) bool {
			return name == "xl/sharedStrings.xml" ||
				(strings.HasPrefix(name, "xl/worksheets/sheet") && strings.HasSuffix(name, ".xml"))
		})
	case ".docx":
		return extractOOXML(content, limits, func(name string) bool {
			return name == "word/document.xml"
		})
	case ".pdf":
		return extractPDF(content)
	case ".zip":
		return extractZip(content, limits)
	case ".7z":
		return extract7z(content, limits)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

func getExtension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func openZip(content []byte) (*zip.Reader, error) {
	return zip.NewReader(bytes.NewReader(content), int64(len(content)))
}

// extractOOXML pulls the text nodes of the selected XML parts of an
// Office Open XML package.
func extractOOXML(content []byte, limits ExtractLimits, want func(string) bool) ([]ExtractedContent, error) {
	zr, err := openZip(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open document as zip: %w", err)
	}

	var results []ExtractedContent
	for _, file := range zr.File {
		if !want(file.Name) {
			continue
		}
		data, err := readMember(file.Open, limits.MaxMemberSize)
		if err != nil {
			continue
		}
		if text := extractXMLText(data); len(text) > 0 {
			results = append(results, ExtractedContent{Name: file.Name, Content: []byte(text)})
		}
	}
	return results, nil
}

// extractZip returns the text members of a zip archive.
func extractZip(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	zr, err := openZip(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}

	var results []ExtractedContent
	for i, file := range zr.File {
		if i >= limits.MaxMembers {
			break
		}
		if file.FileInfo().IsDir() || int64(file.UncompressedSize64) > limits.MaxMemberSize {
			continue
		}
		data, err := readMember(file.Open, limits.MaxMemberSize)
		if err != nil || len(data) == 0 || isBinary(data) {
			continue
		}
		results = append(results, ExtractedContent{Name: file.Name, Content: data})
	}
	return results, nil
}

// extract7z returns the text members of a 7z archive.
func extract7z(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z: %w", err)
	}

	var results []ExtractedContent
	for i, file := range r.File {
		if i >= limits.MaxMembers {
			break
		}
		if file.FileInfo().IsDir() {
			continue
		}
		data, err := readMember(file.Open, limits.MaxMemberSize)
		if err != nil || len(data) == 0 || isBinary(data) {
			continue
		}
		results = append(results, ExtractedContent{Name: file.Name, Content: data})
	}
	return results, nil
}

func readMember(open func() (io.ReadCloser, error), limit int64) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("member exceeds %d bytes", limit)
	}
	return data, nil
}

// extractPDF extracts text from PDF files using ledongthuc/pdf.
func extractPDF(content []byte) ([]ExtractedContent, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var text strings.Builder
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Keep what the other pages yield.
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	extracted := text.String()
	if len(strings.TrimSpace(extracted)) == 0 {
		return nil, nil
	}
	return []ExtractedContent{{Name: "content", Content: []byte(extracted)}}, nil
}

// extractXMLText collects the non-blank text nodes of an XML document.
func extractXMLText(data []byte) string {
	var text strings.Builder
	decoder := xml.NewDecoder(bytes.NewReader(data))

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		if cd, ok := token.(xml.CharData); ok {
			content := string(cd)
			if strings.TrimSpace(content) != "" {
				if text.Len() > 0 {
					text.WriteString(" ")
				}
				text.WriteString(cleanText(content))
			}
		}
	}

	return text.String()
}

// cleanText collapses whitespace and drops non-printable characters.
func cleanText(s string) string {
	var result strings.Builder
	lastSpace := false

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				result.WriteRune(' ')
				lastSpace = true
			}
		} else if unicode.IsPrint(r) {
			result.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}
