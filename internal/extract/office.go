package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Word documents and slide decks are zip archives of XML parts. Element names
// are matched by local name so both w: and a: prefixed text elements work.

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func openArchive(data []byte) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid office archive: %w", err)
	}
	return reader, nil
}

func readPart(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, err)
	}
	return content, nil
}

// textBlock collects the text of one paragraph-like element.
type textBlock struct {
	Inner []byte `xml:",innerxml"`
}

// Text concatenates every <t> element inside the block.
func (b textBlock) Text() string {
	var sb strings.Builder
	dec := xml.NewDecoder(bytes.NewReader(b.Inner))
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				depth++
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "t" && depth > 0 {
				depth--
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(t)
			}
		}
	}
	return sb.String()
}

type tableCell struct {
	Paragraphs []textBlock `xml:"p"`
	// Slide tables nest paragraphs in a text body.
	Body struct {
		Paragraphs []textBlock `xml:"p"`
	} `xml:"txBody"`
}

func (c tableCell) Text() string {
	paras := slices.Concat(c.Paragraphs, c.Body.Paragraphs)
	lines := make([]string, 0, len(paras))
	for _, p := range paras {
		if text := strings.TrimSpace(p.Text()); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, " ")
}

type tableRow struct {
	Cells []tableCell `xml:"tc"`
}

type table struct {
	Rows []tableRow `xml:"tr"`
}

// render writes one line per row with cells separated by " | ".
func (t table) render(sb *strings.Builder) {
	for _, row := range t.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.Text()
		}
		line := strings.Join(cells, " | ")
		if strings.Trim(line, " |") == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

type wordDocument struct {
	Body struct {
		Paragraphs []textBlock `xml:"p"`
		Tables     []table     `xml:"tbl"`
	} `xml:"body"`
}

func extractDOCX(data []byte) (*Result, error) {
	reader, err := openArchive(data)
	if err != nil {
		return nil, err
	}
	var part *zip.File
	for _, file := range reader.File {
		if file.Name == "word/document.xml" {
			part = file
			break
		}
	}
	if part == nil {
		return nil, errors.New("word/document.xml not found")
	}
	content, err := readPart(part)
	if err != nil {
		return nil, err
	}

	var doc wordDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}

	var sb strings.Builder
	for _, p := range doc.Body.Paragraphs {
		if text := strings.TrimSpace(p.Text()); text != "" {
			sb.WriteString(text)
			sb.WriteByte('\n')
		}
	}
	for _, t := range doc.Body.Tables {
		t.render(&sb)
	}
	return &Result{Text: sb.String(), Format: FormatDOCX, Pages: 1}, nil
}

type slideShape struct {
	Body struct {
		Paragraphs []textBlock `xml:"p"`
	} `xml:"txBody"`
}

type slideFrame struct {
	Graphic struct {
		Data struct {
			Tables []table `xml:"tbl"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

type slideGroup struct {
	Shapes []slideShape `xml:"sp"`
	Frames []slideFrame `xml:"graphicFrame"`
	Groups []slideGroup `xml:"grpSp"`
}

type slideDocument struct {
	Tree slideGroup `xml:"cSld>spTree"`
}

func (g slideGroup) collect(lines *strings.Builder, tables *[]table) {
	for _, shape := range g.Shapes {
		for _, p := range shape.Body.Paragraphs {
			if text := strings.TrimSpace(p.Text()); text != "" {
				lines.WriteString(text)
				lines.WriteByte('\n')
			}
		}
	}
	for _, frame := range g.Frames {
		*tables = append(*tables, frame.Graphic.Data.Tables...)
	}
	for _, group := range g.Groups {
		group.collect(lines, tables)
	}
}

func extractPPTX(data []byte) (*Result, error) {
	reader, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n    int
		file *zip.File
	}
	var slides []numbered
	for _, file := range reader.File {
		m := slidePart.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, numbered{n: n, file: file})
	}
	if len(slides) == 0 {
		return nil, errors.New("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var sb strings.Builder
	for _, slide := range slides {
		content, err := readPart(slide.file)
		if err != nil {
			return nil, err
		}
		var doc slideDocument
		if err := xml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", slide.file.Name, err)
		}
		var tables []table
		doc.Tree.collect(&sb, &tables)
		for _, t := range tables {
			t.render(&sb)
		}
		sb.WriteByte('\n')
	}
	return &Result{Text: sb.String(), Format: FormatPPTX, Pages: len(slides)}, nil
}
