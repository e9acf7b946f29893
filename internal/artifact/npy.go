package artifact

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NPY dtype descriptors written by this package.
const (
	DescrFloat64    = "<f8"
	DescrComplex128 = "<c16"
	DescrInt64      = "<i8"
)

var npyMagic = []byte("\x93NUMPY")

// npyAlign is the total header alignment required by NPY v1.0.
const npyAlign = 64

// NPYHeader is the parsed header of an .npy file.
type NPYHeader struct {
	Descr        string
	FortranOrder bool
	Shape        []int
}

// Len returns the element count implied by the shape.
func (h NPYHeader) Len() int {
	n := 1
	for _, d := range h.Shape {
		n *= d
	}
	return n
}

// WriteNPY writes data as an NPY v1.0 array in C order.
//
// data must be []float64, []complex128 or []int64 and its length must equal
// the product of shape.
func WriteNPY(w io.Writer, shape []int, data any) error {
	var descr string
	var count int
	switch d := data.(type) {
	case []float64:
		descr, count = DescrFloat64, len(d)
	case []complex128:
		descr, count = DescrComplex128, len(d)
	case []int64:
		descr, count = DescrInt64, len(d)
	default:
		return fmt.Errorf("npy: unsupported element type %T", data)
	}
	want := NPYHeader{Shape: shape}.Len()
	if want != count {
		return fmt.Errorf("npy: shape %v holds %d elements, got %d", shape, want, count)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(npyHeaderBytes(descr, shape)); err != nil {
		return fmt.Errorf("npy: write header: %w", err)
	}

	var buf [8]byte
	put := func(bits uint64) error {
		binary.LittleEndian.PutUint64(buf[:], bits)
		_, err := bw.Write(buf[:])
		return err
	}
	var err error
	switch d := data.(type) {
	case []float64:
		for _, v := range d {
			if err = put(math.Float64bits(v)); err != nil {
				break
			}
		}
	case []complex128:
		for _, v := range d {
			if err = put(math.Float64bits(real(v))); err != nil {
				break
			}
			if err = put(math.Float64bits(imag(v))); err != nil {
				break
			}
		}
	case []int64:
		for _, v := range d {
			if err = put(uint64(v)); err != nil {
				break
			}
		}
	}
	if err != nil {
		return fmt.Errorf("npy: write data: %w", err)
	}
	return bw.Flush()
}

func npyHeaderBytes(descr string, shape []int) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	tuple := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	tuple += ")"

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, tuple)
	// magic(6) + version(2) + length(2) + dict + padding + '\n'
	preamble := len(npyMagic) + 4
	pad := npyAlign - (preamble+len(dict)+1)%npyAlign
	if pad == npyAlign {
		pad = 0
	}
	header := dict + strings.Repeat(" ", pad) + "\n"

	var out bytes.Buffer
	out.Write(npyMagic)
	out.Write([]byte{1, 0})
	var hl [2]byte
	binary.LittleEndian.PutUint16(hl[:], uint16(len(header)))
	out.Write(hl[:])
	out.WriteString(header)
	return out.Bytes()
}

var (
	descrRE   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRE = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRE   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNPYHeader parses the header of an .npy stream, leaving r positioned
// at the start of the data. Versions 1.0, 2.0 and 3.0 are accepted.
func ReadNPYHeader(r io.Reader) (NPYHeader, error) {
	var h NPYHeader
	pre := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, pre); err != nil {
		return h, fmt.Errorf("npy: read magic: %w", err)
	}
	if !bytes.Equal(pre[:len(npyMagic)], npyMagic) {
		return h, errors.New("npy: bad magic")
	}

	var hlen int
	switch major := pre[len(npyMagic)]; major {
	case 1:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return h, fmt.Errorf("npy: read header length: %w", err)
		}
		hlen = int(binary.LittleEndian.Uint16(b[:]))
	case 2, 3:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return h, fmt.Errorf("npy: read header length: %w", err)
		}
		hlen = int(binary.LittleEndian.Uint32(b[:]))
	default:
		return h, fmt.Errorf("npy: unsupported version %d", major)
	}

	raw := make([]byte, hlen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return h, fmt.Errorf("npy: read header: %w", err)
	}
	dict := string(raw)

	m := descrRE.FindStringSubmatch(dict)
	if m == nil {
		return h, errors.New("npy: header has no descr")
	}
	h.Descr = m[1]

	m = fortranRE.FindStringSubmatch(dict)
	if m == nil {
		return h, errors.New("npy: header has no fortran_order")
	}
	h.FortranOrder = m[1] == "True"

	m = shapeRE.FindStringSubmatch(dict)
	if m == nil {
		return h, errors.New("npy: header has no shape")
	}
	h.Shape = []int{}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			return h, fmt.Errorf("npy: bad shape dimension %q", part)
		}
		h.Shape = append(h.Shape, d)
	}
	return h, nil
}

// itemSize returns the byte width of descr, or 0 when unknown.
func itemSize(descr string) int {
	if len(descr) < 3 {
		return 0
	}
	n, err := strconv.Atoi(descr[2:])
	if err != nil {
		return 0
	}
	return n
}
