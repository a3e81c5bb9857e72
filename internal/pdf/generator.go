package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Analysis identifies one stored report run under the results directory,
// laid out as results/{symbol}/{date}/reports/*.md.
type Analysis struct {
	Symbol string
	Date   string
	Dir    string
}

// ListAnalyses walks resultsDir and returns every symbol/date pair that has
// a reports directory, sorted by symbol then date.
func ListAnalyses(resultsDir string) ([]Analysis, error) {
	symbols, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory %s: %v", resultsDir, err)
	}

	var analyses []Analysis
	for _, sym := range symbols {
		if !sym.IsDir() {
			continue
		}
		dates, err := os.ReadDir(filepath.Join(resultsDir, sym.Name()))
		if err != nil {
			continue
		}
		for _, date := range dates {
			if !date.IsDir() {
				continue
			}
			reportsDir := filepath.Join(resultsDir, sym.Name(), date.Name(), "reports")
			if info, err := os.Stat(reportsDir); err != nil || !info.IsDir() {
				continue
			}
			analyses = append(analyses, Analysis{
				Symbol: sym.Name(),
				Date:   date.Name(),
				Dir:    reportsDir,
			})
		}
	}

	sort.Slice(analyses, func(i, j int) bool {
		if analyses[i].Symbol != analyses[j].Symbol {
			return analyses[i].Symbol < analyses[j].Symbol
		}
		return analyses[i].Date < analyses[j].Date
	})
	return analyses, nil
}

// FindLatestAnalysis returns the analysis with the most recent date,
// optionally restricted to one symbol.
func FindLatestAnalysis(resultsDir, symbol string) (Analysis, error) {
	analyses, err := ListAnalyses(resultsDir)
	if err != nil {
		return Analysis{}, err
	}

	var latest Analysis
	for _, a := range analyses {
		if symbol != "" && a.Symbol != symbol {
			continue
		}
		if a.Date > latest.Date {
			latest = a
		}
	}
	if latest.Dir == "" {
		if symbol != "" {
			return Analysis{}, fmt.Errorf("no analysis found for symbol %s", symbol)
		}
		return Analysis{}, fmt.Errorf("no analysis found under %s", resultsDir)
	}
	return latest, nil
}

// GenerateReports converts every .md report of one analysis to PDF, writing
// the output next to the source under reports_pdf/. It returns the paths of
// the generated files.
func GenerateReports(resultsDir, symbol, date string) ([]string, error) {
	reportsDir := filepath.Join(resultsDir, symbol, date, "reports")
	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports directory %s: %v", reportsDir, err)
	}

	outDir := filepath.Join(resultsDir, symbol, date, "reports_pdf")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %v", outDir, err)
	}

	var generated []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(reportsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read report %s: %v", entry.Name(), err)
		}

		title := fmt.Sprintf("%s %s - %s", symbol, date, strings.TrimSuffix(entry.Name(), ".md"))
		outPath := filepath.Join(outDir, strings.TrimSuffix(entry.Name(), ".md")+".pdf")
		if err := writePDF(outPath, title, string(content)); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %v", outPath, err)
		}
		generated = append(generated, outPath)
	}

	if len(generated) == 0 {
		return nil, fmt.Errorf("no markdown reports in %s", reportsDir)
	}
	return generated, nil
}

// writePDF parses the markdown report and renders its AST into a PDF.
func writePDF(outPath, title, content string) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 12)
	doc.AddPage()

	r := &reportRenderer{
		doc:    doc,
		source: []byte(content),
		tr:     doc.UnicodeTranslatorFromDescriptor(""),
	}

	doc.SetFont("Arial", "B", 14)
	doc.MultiCell(0, 7, r.tr(title), "", "L", false)
	doc.Ln(3)
	r.updateFont()

	root := goldmark.New().Parser().Parse(text.NewReader(r.source))
	if err := ast.Walk(root, r.walk); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	return doc.OutputFileAndClose(outPath)
}

const bodyLineHeight = 4.5

// reportRenderer walks the markdown AST and draws headings, paragraphs and
// emphasis into the document.
type reportRenderer struct {
	doc    *fpdf.Fpdf
	source []byte
	tr     func(string) string
	bold   bool
	italic bool
}

func (r *reportRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.doc.SetFont("Arial", style, 9)
}

func (r *reportRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		h := n.(*ast.Heading)
		if entering {
			r.doc.Ln(2)
			size := 12.0
			switch h.Level {
			case 2:
				size = 11
			case 3:
				size = 10
			default:
				size = 9
			}
			r.doc.SetFont("Arial", "B", size)
		} else {
			r.doc.Ln(6)
			r.updateFont()
		}
	case ast.KindParagraph:
		if !entering {
			r.doc.Ln(bodyLineHeight + 2)
		}
	case ast.KindText:
		if entering {
			t := n.(*ast.Text)
			r.doc.Write(bodyLineHeight, r.tr(string(t.Segment.Value(r.source))))
			if t.SoftLineBreak() || t.HardLineBreak() {
				r.doc.Ln(bodyLineHeight)
			}
		}
	case ast.KindEmphasis:
		e := n.(*ast.Emphasis)
		if e.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case ast.KindThematicBreak:
		if entering {
			r.doc.Ln(2)
			r.doc.Line(10, r.doc.GetY(), 200, r.doc.GetY())
			r.doc.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}
