package transform

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
	"go.trai.ch/zerr"
)

var idReference = regexp.MustCompile(`(?:url\(\s*['"]?|href\s*=\s*['"])#([^'")\s]+)`)

type svgAttr struct {
	name string
	val  []byte // quoted
}

// pruneSVG removes a redundant root viewBox and, with cleanupIDs, every id
// that nothing references. The document is otherwise reproduced token by token.
func pruneSVG(in []byte, removeViewBox, cleanupIDs bool) ([]byte, error) {
	referenced := map[string]bool{}
	if cleanupIDs {
		for _, m := range idReference.FindAllSubmatch(in, -1) {
			referenced[string(m[1])] = true
		}
	}

	var (
		out    bytes.Buffer
		depth  int
		inRoot bool
		attrs  []svgAttr
	)

	keep := func(a svgAttr) bool {
		return !cleanupIDs || a.name != "id" || referenced[string(unquote(a.val))]
	}

	flushRoot := func() {
		drop := removeViewBox && redundantViewBox(attrs)
		for _, a := range attrs {
			if (drop && a.name == "viewBox") || !keep(a) {
				continue
			}
			writeAttr(&out, a)
		}
		attrs = nil
		inRoot = false
	}

	l := xml.NewLexer(parse.NewInputBytes(in))
	for {
		tt, data := l.Next()
		switch tt {
		case xml.ErrorToken:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, zerr.Wrap(err, "failed to parse svg")
			}
			return out.Bytes(), nil

		case xml.StartTagToken:
			name := string(l.Text())
			out.WriteString("<" + name)
			inRoot = depth == 0 && name == "svg"
			depth++

		case xml.AttributeToken:
			a := svgAttr{name: string(l.Text()), val: append([]byte(nil), l.AttrVal()...)}
			if inRoot {
				attrs = append(attrs, a)
				continue
			}
			if keep(a) {
				writeAttr(&out, a)
			}

		case xml.StartTagCloseToken:
			if inRoot {
				flushRoot()
			}
			out.WriteByte('>')

		case xml.StartTagCloseVoidToken:
			if inRoot {
				flushRoot()
			}
			depth--
			out.WriteString("/>")

		case xml.StartTagPIToken:
			out.WriteString("<?" + string(l.Text()))

		case xml.StartTagClosePIToken:
			out.WriteString("?>")

		case xml.EndTagToken:
			depth--
			out.Write(data)

		default:
			out.Write(data)
		}
	}
}

func writeAttr(out *bytes.Buffer, a svgAttr) {
	out.WriteString(" " + a.name)
	if len(a.val) > 0 {
		out.WriteByte('=')
		out.Write(a.val)
	}
}

// redundantViewBox reports whether viewBox is "0 0 width height" for the
// element's own width and height.
func redundantViewBox(attrs []svgAttr) bool {
	var viewBox, width, height string
	for _, a := range attrs {
		switch a.name {
		case "viewBox":
			viewBox = string(unquote(a.val))
		case "width":
			width = strings.TrimSuffix(string(unquote(a.val)), "px")
		case "height":
			height = strings.TrimSuffix(string(unquote(a.val)), "px")
		}
	}
	if viewBox == "" || width == "" || height == "" {
		return false
	}

	fields := strings.FieldsFunc(viewBox, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(fields) != 4 {
		return false
	}
	nums := make([]float64, 4)
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return false
		}
		nums[i] = n
	}
	w, errW := strconv.ParseFloat(width, 64)
	h, errH := strconv.ParseFloat(height, 64)
	if errW != nil || errH != nil {
		return false
	}
	return nums[0] == 0 && nums[1] == 0 && nums[2] == w && nums[3] == h
}

func unquote(b []byte) []byte {
	if len(b) >= 2 && (b[0] == '"' || b[0] == '\'') && b[len(b)-1] == b[0] {
		return b[1 : len(b)-1]
	}
	return b
}
