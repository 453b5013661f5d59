package document

import (
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/renamekit/coords"
)

// textSpan is a run of shown text anchored at its text-space position
// (PDF convention, origin bottom-left).
type textSpan struct {
	text string
	x, y float64
}

// contentState tracks the subset of the text object state needed to anchor
// show-text operators: current position, line start, and leading.
type contentState struct {
	curX, curY   float64
	lineX, lineY float64
	leading      float64
}

func (s *contentState) beginText() {
	*s = contentState{}
}

func (s *contentState) setMatrix(e, f float64) {
	s.lineX, s.lineY = e, f
	s.curX, s.curY = e, f
}

func (s *contentState) moveLine(tx, ty float64) {
	s.lineX += tx
	s.lineY += ty
	s.curX, s.curY = s.lineX, s.lineY
}

func (s *contentState) nextLine() {
	s.lineY -= s.leading
	s.curX, s.curY = s.lineX, s.lineY
}

// parseContentSpans scans a decoded content stream for show-text operators
// and returns each shown string with its best-effort anchor position. Glyph
// advances are not simulated; the anchor is the line position set by the
// preceding Td/TD/Tm/T* operator, which is accurate enough for region tests
// on form-like documents.
func parseContentSpans(data []byte) []textSpan {
	var (
		spans []textSpan
		nums  []float64
		strs  []string
		st    contentState
	)
	emit := func(text string) {
		if text != "" {
			spans = append(spans, textSpan{text: text, x: st.curX, y: st.curY})
		}
	}
	flush := func() {
		nums = nums[:0]
		strs = strs[:0]
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0:
			i++
		case c == '(':
			text, next := parseLiteralString(data, i)
			strs = append(strs, text)
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] != '<':
			text, next := parseHexString(data, i)
			strs = append(strs, text)
			i = next
		case c == '<' || c == '>':
			i += 2 // dict delimiters, irrelevant to text anchors
		case c == '[' || c == ']' || c == '{' || c == '}':
			i++
		case c == '/':
			i++
			for i < len(data) && !isDelimiter(data[i]) {
				i++
			}
		case c == '%':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(data) && (data[i] == '.' || (data[i] >= '0' && data[i] <= '9')) {
				i++
			}
			if v, err := strconv.ParseFloat(string(data[start:i]), 64); err == nil {
				nums = append(nums, v)
			}
		default:
			start := i
			for i < len(data) && !isDelimiter(data[i]) {
				i++
			}
			op := string(data[start:i])
			switch op {
			case "BT":
				st.beginText()
			case "Tm":
				if len(nums) >= 6 {
					st.setMatrix(nums[len(nums)-2], nums[len(nums)-1])
				}
			case "Td":
				if len(nums) >= 2 {
					st.moveLine(nums[len(nums)-2], nums[len(nums)-1])
				}
			case "TD":
				if len(nums) >= 2 {
					st.leading = -nums[len(nums)-1]
					st.moveLine(nums[len(nums)-2], nums[len(nums)-1])
				}
			case "TL":
				if len(nums) >= 1 {
					st.leading = nums[len(nums)-1]
				}
			case "T*":
				st.nextLine()
			case "Tj":
				if len(strs) >= 1 {
					emit(strs[len(strs)-1])
				}
			case "'", "\"":
				st.nextLine()
				if len(strs) >= 1 {
					emit(strs[len(strs)-1])
				}
			case "TJ":
				emit(strings.Join(strs, ""))
			}
			flush()
		}
	}
	return spans
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// parseLiteralString decodes a PDF (...) string starting at data[i] == '('.
// It handles escape sequences, octal escapes, and balanced nested parens.
func parseLiteralString(data []byte, i int) (string, int) {
	var sb strings.Builder
	depth := 1
	i++
	for i < len(data) && depth > 0 {
		c := data[i]
		switch c {
		case '\\':
			i++
			if i >= len(data) {
				break
			}
			switch data[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
				// ignored
			case '\\', '(', ')':
				sb.WriteByte(data[i])
			default:
				if data[i] >= '0' && data[i] <= '7' {
					val := int(data[i] - '0')
					for n := 0; n < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; n++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(data[i])
				}
			}
			i++
		case '(':
			depth++
			sb.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				sb.WriteByte(c)
			}
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

// parseHexString decodes a PDF <...> hex string starting at data[i] == '<'.
// Multi-byte CID text decodes to garbage here; callers treat unprintable
// output as absence of text.
func parseHexString(data []byte, i int) (string, int) {
	i++
	var digits []byte
	for i < len(data) && data[i] != '>' {
		c := data[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			digits = append(digits, c)
		}
		i++
	}
	if i < len(data) {
		i++ // consume '>'
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var sb strings.Builder
	for j := 0; j+1 < len(digits); j += 2 {
		v, err := strconv.ParseUint(string(digits[j:j+2]), 16, 8)
		if err != nil {
			continue
		}
		if b := byte(v); b >= 0x20 && b < 0x7f {
			sb.WriteByte(b)
		}
	}
	return sb.String(), i
}

// regionText filters spans to those anchored inside rect (after converting
// from the PDF's bottom-left origin to top-left document space) and joins
// them in reading order.
func regionText(spans []textSpan, rect coords.Rect, pageH float64) string {
	type placed struct {
		text string
		x, y float64
	}
	var hits []placed
	for _, s := range spans {
		p := coords.Point{X: s.x, Y: pageH - s.y}
		if rect.Contains(p) {
			hits = append(hits, placed{text: s.text, x: p.X, y: p.Y})
		}
	}
	if len(hits) == 0 {
		return ""
	}
	sort.SliceStable(hits, func(i, j int) bool {
		const rowTolerance = 3.0
		if d := hits[i].y - hits[j].y; d < -rowTolerance || d > rowTolerance {
			return hits[i].y < hits[j].y
		}
		return hits[i].x < hits[j].x
	})
	var sb strings.Builder
	lastY := hits[0].y
	for i, h := range hits {
		if i > 0 {
			if h.y-lastY > 3.0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(strings.TrimSpace(h.text))
		lastY = h.y
	}
	return strings.TrimSpace(sb.String())
}
