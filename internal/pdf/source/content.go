package source

import (
	"log"
	"math"
	"strings"
	"unicode"

	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

const (
	// defaultGlyphWidth is used for fonts without a usable Widths array,
	// in thousandths of text space
	defaultGlyphWidth = 500.0

	// TJ adjustments below -spaceAdjustment thousandths of an em read as a
	// word gap
	spaceAdjustment = 250.0

	baselineEpsilon = 0.01
)

// contentReader walks a page's content streams once and collects glyph runs
// and image paint operators in stream order
type contentReader struct {
	logger   *log.Logger
	maxDepth int

	runs    []extraction.RawTextRun
	images  []extraction.RawImageOp
	opIndex int
}

type textState struct {
	ctm         matrix
	charSpacing float64
	wordSpacing float64
	hScale      float64
	leading     float64
	rise        float64
	fontSize    float64
	font        *fontInfo
}

type fontInfo struct {
	name         string
	font         pdf.Font
	enc          pdf.TextEncoding
	hasWidths    bool
	multiByte    bool
	vertical     bool
	missingWidth float64
}

// passthrough decodes raw bytes as-is when a font carries no usable encoding
type passthrough struct{}

func (passthrough) Decode(raw string) string { return raw }

var fallbackFont = &fontInfo{enc: passthrough{}}

// readContent interprets the page's Contents, recovering from the panics the
// stream lexer raises on malformed input
func readContent(page pdf.Page, maxDepth int, logger *log.Logger) (runs []extraction.RawTextRun, images []extraction.RawImageOp, err error) {
	defer func() {
		if r := recover(); r != nil {
			runs, images = nil, nil
			err = errors.Errorf("malformed content stream: %v", r)
		}
	}()

	r := &contentReader{logger: logger, maxDepth: maxDepth}
	contents := page.V.Key("Contents")
	if contents.Kind() == pdf.Null {
		return nil, nil, nil
	}
	r.process(contents, page.Resources(), identity, 0)
	return r.runs, r.images, nil
}

func interpret(strm pdf.Value, do func(stk *pdf.Stack, op string)) {
	if strm.Kind() == pdf.Array {
		for i := 0; i < strm.Len(); i++ {
			pdf.Interpret(strm.Index(i), do)
		}
		return
	}
	pdf.Interpret(strm, do)
}

func (r *contentReader) process(strm, resources pdf.Value, ctm matrix, depth int) {
	g := textState{ctm: ctm, hScale: 1, font: fallbackFont}
	var saved []textState
	var tm, tlm matrix
	fonts := map[string]*fontInfo{}
	blockStart := len(r.runs)

	interpret(strm, func(stk *pdf.Stack, op string) {
		index := r.opIndex
		r.opIndex++

		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "q":
			saved = append(saved, g)
		case "Q":
			if len(saved) > 0 {
				g = saved[len(saved)-1]
				saved = saved[:len(saved)-1]
			}
		case "cm":
			if m, ok := matrixFromArgs(args); ok {
				g.ctm = m.mul(g.ctm)
			}

		case "BT":
			tm, tlm = identity, identity
			blockStart = len(r.runs)
		case "ET":
			if len(r.runs) > blockStart {
				r.runs[len(r.runs)-1].EOL = true
			}

		case "Tf":
			if len(args) != 2 {
				return
			}
			g.font = r.lookupFont(fonts, resources, args[0].Name())
			g.fontSize = args[1].Float64()
		case "Tc":
			if len(args) == 1 {
				g.charSpacing = args[0].Float64()
			}
		case "Tw":
			if len(args) == 1 {
				g.wordSpacing = args[0].Float64()
			}
		case "Tz":
			if len(args) == 1 {
				g.hScale = args[0].Float64() / 100
			}
		case "TL":
			if len(args) == 1 {
				g.leading = args[0].Float64()
			}
		case "Ts":
			if len(args) == 1 {
				g.rise = args[0].Float64()
			}

		case "Td", "TD":
			if len(args) != 2 {
				return
			}
			if op == "TD" {
				g.leading = -args[1].Float64()
			}
			tlm = translate(args[0].Float64(), args[1].Float64()).mul(tlm)
			tm = tlm
		case "T*":
			tlm = translate(0, -g.leading).mul(tlm)
			tm = tlm
		case "Tm":
			if m, ok := matrixFromArgs(args); ok {
				tm, tlm = m, m
			}

		case "Tj":
			if len(args) == 1 {
				r.show(&g, &tm, args, blockStart)
			}
		case "'":
			if len(args) == 1 {
				tlm = translate(0, -g.leading).mul(tlm)
				tm = tlm
				r.show(&g, &tm, args, blockStart)
			}
		case "\"":
			if len(args) == 3 {
				g.wordSpacing = args[0].Float64()
				g.charSpacing = args[1].Float64()
				tlm = translate(0, -g.leading).mul(tlm)
				tm = tlm
				r.show(&g, &tm, args[2:], blockStart)
			}
		case "TJ":
			if len(args) == 1 && args[0].Kind() == pdf.Array {
				parts := make([]pdf.Value, args[0].Len())
				for i := range parts {
					parts[i] = args[0].Index(i)
				}
				r.show(&g, &tm, parts, blockStart)
			}

		case "Do":
			if len(args) == 1 {
				r.paintXObject(resources, args[0].Name(), g.ctm, index, depth)
			}
		}
	})
}

// show emits one run for a whole show operator and advances the text matrix
func (r *contentReader) show(g *textState, tm *matrix, parts []pdf.Value, blockStart int) {
	font := g.font
	trm := matrix{g.fontSize * g.hScale, 0, 0, g.fontSize, 0, g.rise}.mul(*tm).mul(g.ctm)
	base := tm.mul(g.ctm)

	var sb strings.Builder
	var advance float64
	for _, part := range parts {
		switch part.Kind() {
		case pdf.String:
			text, adv := font.decode(part.RawString(), g)
			sb.WriteString(text)
			advance += adv
		case pdf.Integer, pdf.Real:
			adj := part.Float64()
			if adj < -spaceAdjustment && sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
			advance += -adj / 1000 * g.fontSize * g.hScale
		}
	}
	*tm = translate(advance, 0).mul(*tm)

	text := norm.NFKC.String(sb.String())
	if text == "" {
		return
	}

	run := extraction.RawTextRun{
		Text:      text,
		Transform: [6]float64(trm),
		Width:     math.Abs(advance) * base.xScale(),
		Height:    trm.yScale(),
		FontName:  font.name,
		Dir:       direction(text, font.vertical),
	}

	if last := len(r.runs) - 1; last >= blockStart && last >= 0 {
		if math.Abs(r.runs[last].Y()-run.Y()) > baselineEpsilon {
			r.runs[last].EOL = true
		}
	}
	r.runs = append(r.runs, run)
}

func (r *contentReader) paintXObject(resources pdf.Value, name string, ctm matrix, index, depth int) {
	if name == "" {
		return
	}
	xobj := resources.Key("XObject").Key(name)
	if xobj.Kind() != pdf.Stream {
		return
	}

	switch xobj.Key("Subtype").Name() {
	case "Image":
		r.images = append(r.images, extraction.RawImageOp{
			OperatorIndex: index,
			Name:          name,
			PixelWidth:    int(xobj.Key("Width").Int64()),
			PixelHeight:   int(xobj.Key("Height").Int64()),
		})
	case "Form":
		if depth >= r.maxDepth {
			r.logger.Printf("[Source] form XObject %s exceeds nesting depth %d, skipped", name, r.maxDepth)
			return
		}
		formRes := xobj.Key("Resources")
		if formRes.Kind() == pdf.Null {
			formRes = resources
		}
		childCTM := ctm
		if m, ok := matrixFromValue(xobj.Key("Matrix")); ok {
			childCTM = m.mul(ctm)
		}
		r.process(xobj, formRes, childCTM, depth+1)
	}
}

func (r *contentReader) lookupFont(cache map[string]*fontInfo, resources pdf.Value, name string) *fontInfo {
	if f, ok := cache[name]; ok {
		return f
	}
	v := resources.Key("Font").Key(name)
	if v.Kind() != pdf.Dict {
		r.logger.Printf("[Source] font %s not found in resources", name)
		cache[name] = fallbackFont
		return fallbackFont
	}
	f := newFontInfo(v)
	cache[name] = f
	return f
}

func newFontInfo(v pdf.Value) *fontInfo {
	font := pdf.Font{V: v}
	name := font.BaseFont()
	if i := strings.Index(name, "+"); i >= 0 {
		name = name[i+1:]
	}

	var enc pdf.TextEncoding = passthrough{}
	if e := font.Encoder(); e != nil {
		enc = e
	}

	return &fontInfo{
		name:         name,
		font:         font,
		enc:          enc,
		hasWidths:    v.Key("Widths").Len() > 0,
		multiByte:    v.Key("Subtype").Name() == "Type0",
		vertical:     strings.HasSuffix(v.Key("Encoding").Name(), "-V"),
		missingWidth: v.Key("FontDescriptor").Key("MissingWidth").Float64(),
	}
}

// decode returns the Unicode text of raw and its advance in text space
func (f *fontInfo) decode(raw string, g *textState) (string, float64) {
	text := f.enc.Decode(raw)

	var advance float64
	step := func(width float64, space bool) {
		tx := width/1000*g.fontSize + g.charSpacing
		if space {
			tx += g.wordSpacing
		}
		advance += tx * g.hScale
	}

	if f.hasWidths && !f.multiByte {
		for i := 0; i < len(raw); i++ {
			w := f.font.Width(int(raw[i]))
			if w == 0 {
				w = f.missingWidth
			}
			step(w, raw[i] == ' ')
		}
	} else {
		for _, ch := range text {
			step(defaultGlyphWidth, ch == ' ')
		}
	}
	return text, advance
}

func direction(text string, vertical bool) string {
	if vertical {
		return "ttb"
	}
	for _, ch := range text {
		switch {
		case unicode.In(ch, unicode.Hebrew, unicode.Arabic, unicode.Syriac, unicode.Thaana):
			return "rtl"
		case unicode.IsLetter(ch):
			return "ltr"
		}
	}
	return "ltr"
}

func matrixFromArgs(args []pdf.Value) (matrix, bool) {
	if len(args) != 6 {
		return matrix{}, false
	}
	var m matrix
	for i := range m {
		m[i] = args[i].Float64()
	}
	return m, true
}

func matrixFromValue(v pdf.Value) (matrix, bool) {
	if v.Kind() != pdf.Array || v.Len() != 6 {
		return matrix{}, false
	}
	var m matrix
	for i := range m {
		m[i] = v.Index(i).Float64()
	}
	return m, true
}
