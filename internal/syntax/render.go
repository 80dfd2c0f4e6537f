package syntax

import (
	"bytes"
	"fmt"
	"sort"

	"mvdan.cc/gofumpt/format"
)

// Format formats Go source code in-memory using gofumpt.
func Format(src []byte) ([]byte, error) {
	out, err := format.Source(src, format.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: gofumpt: %v", ErrParse, err)
	}
	return out, nil
}

// Render splices the pending members of every container into the source
// and returns the gofumpt-formatted result. A file without pending members
// renders to its formatted source.
func (f *File) Render() ([]byte, error) {
	type insert struct {
		at   int
		text []byte
	}
	var inserts []insert
	for _, c := range f.containers {
		if len(c.pending) == 0 {
			continue
		}
		at, text := f.insertion(c)
		inserts = append(inserts, insert{at: at, text: text})
	}

	// Apply back to front so earlier offsets stay valid.
	sort.Slice(inserts, func(i, j int) bool { return inserts[i].at > inserts[j].at })
	out := bytes.Clone(f.src)
	for _, ins := range inserts {
		// result = prefix + text + suffix
		spliced := make([]byte, 0, len(out)+len(ins.text))
		spliced = append(spliced, out[:ins.at]...)
		spliced = append(spliced, ins.text...)
		spliced = append(spliced, out[ins.at:]...)
		out = spliced
	}
	return Format(out)
}

// insertion places new members on their own lines just above the closing
// brace. When the brace shares a line with other text (interface{} or a
// one-line body) the members open a fresh line instead. Fields appended to
// a struct that already has fields start a new blank-line group, since
// gofmt aligns the type column per group and would otherwise shift the
// existing lines.
func (f *File) insertion(c *Container) (int, []byte) {
	at := int(c.closeByte)
	lineStart := bytes.LastIndexByte(f.src[:at], '\n') + 1
	ownLine := len(bytes.TrimSpace(f.src[lineStart:at])) == 0

	var buf bytes.Buffer
	if ownLine {
		at = lineStart
	} else {
		buf.WriteByte('\n')
	}
	if c.Kind == Struct && len(c.Members) > len(c.pending) {
		buf.WriteByte('\n')
	}
	for _, m := range c.pending {
		buf.WriteByte('\t')
		buf.WriteString(m)
		buf.WriteByte('\n')
	}
	return at, buf.Bytes()
}
