package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lu4p/cat"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultBodyPath = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
	odfContentPath      = "content.xml"
)

var (
	// Runs with attributes, e.g. <w:t xml:space="preserve">.
	docxText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	pptxText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	odfText  = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)

	// The main part can be renamed; either attribute order is valid.
	docxPartName    = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	docxPartNameRev = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
	slideNumber     = regexp.MustCompile(`slide(\d+)\.xml$`)
)

func openZip(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip container: %w", err)
	}
	return zr, nil
}

// readEntry returns the named entry, or nil when the archive has none.
func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// joinMatches joins the first capture group of every match with single spaces.
func joinMatches(re *regexp.Regexp, xml []byte, b *strings.Builder) {
	for _, m := range re.FindAllSubmatch(xml, -1) {
		s := strings.TrimSpace(string(m[1]))
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
}

func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	bodyPath := docxDefaultBodyPath
	if types, err := readEntry(zr, contentTypesPath); err == nil && types != nil {
		for _, re := range []*regexp.Regexp{docxPartName, docxPartNameRev} {
			if m := re.FindSubmatch(types); m != nil {
				bodyPath = strings.TrimPrefix(string(m[1]), "/")
				break
			}
		}
	}
	body, err := readEntry(zr, bodyPath)
	if err != nil {
		return "", err
	}
	if body == nil {
		return "", fmt.Errorf("%s not found", bodyPath)
	}
	var b strings.Builder
	joinMatches(docxText, body, &b)
	return b.String(), nil
}

// extractPPTX reads slides in slide-number order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) {
			continue
		}
		m := slideNumber.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		xml, err := readEntry(zr, s.name)
		if err != nil {
			return "", err
		}
		joinMatches(pptxText, xml, &b)
	}
	return b.String(), nil
}

// extractOpenDocument handles presentations and spreadsheets, whose
// content.xml keeps text in text:p, text:h and text:span elements.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	xml, err := readEntry(zr, odfContentPath)
	if err != nil {
		return "", err
	}
	if xml == nil {
		return "", fmt.Errorf("%s not found", odfContentPath)
	}
	var b strings.Builder
	joinMatches(odfText, xml, &b)
	return b.String(), nil
}

// extractWithCat reads text documents (.odt, .rtf) with lu4p/cat, which
// detects the format from the content.
func extractWithCat(content []byte) (string, error) {
	return cat.FromBytes(content)
}
