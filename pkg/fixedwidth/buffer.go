package fixedwidth

// Buffer builds a fixed-width line initialised to spaces.
type Buffer struct {
	r []rune
}

func NewBuffer(width int) *Buffer {
	r := make([]rune, width)
	for i := range r {
		r[i] = ' '
	}
	return &Buffer{r: r}
}

// Put writes s left aligned into the window of f, cut to the window width.
// The buffer grows when the window ends past it.
func (b *Buffer) Put(f FieldSpec, s string) {
	for len(b.r) < f.End {
		b.r = append(b.r, ' ')
	}
	v := []rune(s)
	if len(v) > f.Width() {
		v = v[:f.Width()]
	}
	copy(b.r[f.Start:], v)
}

// PutDigits writes a zero-padded digit string into the window of f.
func (b *Buffer) PutDigits(f FieldSpec, digits string) {
	b.Put(f, PadDigits(digits, f.Width()))
}

func (b *Buffer) String() string {
	return string(b.r)
}
