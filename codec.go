package protoclust

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Prototype files are line oriented:
//
//	dimensions 2
//	circular essential 0 6.283185307179586
//	linear non-essential -1 1
//	prototypes 1
//	significant mixed 40
//	mean 3.1 0.25
//	distributions normal uniform
//	variance 0.04 0.5
//
// The distributions line only appears for mixed prototypes. Spherical
// prototypes store a single variance.

// WritePrototypes encodes the dimension descriptors and protos to w.
func WritePrototypes(w io.Writer, dims []Dimension, protos []*Prototype) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "dimensions %d\n", len(dims))
	for _, d := range dims {
		kind, essential := "linear", "essential"
		if d.Circular {
			kind = "circular"
		}
		if d.NonEssential {
			essential = "non-essential"
		}
		fmt.Fprintf(bw, "%s %s %s %s\n", kind, essential, formatFloat(d.Min), formatFloat(d.Max))
	}

	fmt.Fprintf(bw, "prototypes %d\n", len(protos))
	for i, p := range protos {
		if len(p.Mean) != len(dims) {
			return fmt.Errorf("%w: prototype %d has %d values, %d dimensions declared", ErrDimensionMismatch, i, len(p.Mean), len(dims))
		}
		significance := "insignificant"
		if p.Significant {
			significance = "significant"
		}
		fmt.Fprintf(bw, "%s %s %d\n", significance, p.Style, p.NumSamples)
		writeFloats(bw, "mean", p.Mean)

		switch s := p.Shape.(type) {
		case *SphericalShape:
			writeFloats(bw, "variance", []float64{s.Variance})
		case *EllipticalShape:
			writeFloats(bw, "variance", s.Variance)
		case *MixedShape:
			bw.WriteString("distributions")
			variance := make([]float64, len(s.Dims))
			for j, d := range s.Dims {
				bw.WriteString(" " + d.Distribution.String())
				variance[j] = d.Variance
			}
			bw.WriteByte('\n')
			writeFloats(bw, "variance", variance)
		default:
			return fmt.Errorf("protoclust: prototype %d has unknown shape %T", i, p.Shape)
		}
	}
	return bw.Flush()
}

// ReadPrototypes decodes a stream written by WritePrototypes. Magnitudes and
// weights are recomputed from the variances; the returned prototypes have no
// cluster reference.
func ReadPrototypes(r io.Reader) ([]Dimension, []*Prototype, error) {
	lr := &lineReader{sc: bufio.NewScanner(r)}
	lr.sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	n, err := lr.count("dimensions")
	if err != nil {
		return nil, nil, err
	}
	dims := make([]Dimension, 0, min(n, 4096))
	for i := 0; i < n; i++ {
		f, err := lr.fields()
		if err != nil {
			return nil, nil, err
		}
		d, err := parseDimension(f)
		if err != nil {
			return nil, nil, lr.errorf("%v", err)
		}
		dims = append(dims, d)
	}
	if err := validateDimensions(dims); err != nil {
		return nil, nil, err
	}

	np, err := lr.count("prototypes")
	if err != nil {
		return nil, nil, err
	}
	protos := make([]*Prototype, 0, min(np, 4096))
	for i := 0; i < np; i++ {
		p, err := lr.prototype(len(dims))
		if err != nil {
			return nil, nil, err
		}
		protos = append(protos, p)
	}
	return dims, protos, nil
}

// WriteCompressed is WritePrototypes behind a zstd stream.
func WriteCompressed(w io.Writer, dims []Dimension, protos []*Prototype) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("protoclust: zstd writer: %w", err)
	}
	if err := WritePrototypes(enc, dims, protos); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadCompressed reads a stream written by WriteCompressed.
func ReadCompressed(r io.Reader) ([]Dimension, []*Prototype, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("protoclust: zstd reader: %w", err)
	}
	defer dec.Close()
	return ReadPrototypes(dec)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func writeFloats(w *bufio.Writer, label string, values []float64) {
	w.WriteString(label)
	for _, v := range values {
		w.WriteByte(' ')
		w.WriteString(formatFloat(v))
	}
	w.WriteByte('\n')
}

func parseDimension(f []string) (Dimension, error) {
	if len(f) != 4 {
		return Dimension{}, fmt.Errorf("dimension needs 4 fields, got %d", len(f))
	}
	var d Dimension
	switch f[0] {
	case "circular":
		d.Circular = true
	case "linear":
	default:
		return Dimension{}, fmt.Errorf("unknown dimension kind %q", f[0])
	}
	switch f[1] {
	case "non-essential":
		d.NonEssential = true
	case "essential":
	default:
		return Dimension{}, fmt.Errorf("unknown essential flag %q", f[1])
	}
	var err error
	if d.Min, err = strconv.ParseFloat(f[2], 64); err != nil {
		return Dimension{}, err
	}
	if d.Max, err = strconv.ParseFloat(f[3], 64); err != nil {
		return Dimension{}, err
	}
	return d, nil
}

func parseStyle(s string) (Style, error) {
	for _, st := range []Style{Spherical, Elliptical, Mixed} {
		if s == st.String() {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown style %q", s)
}

func parseDistribution(s string) (Distribution, error) {
	for _, d := range []Distribution{Normal, Uniform, Random} {
		if s == d.String() {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown distribution %q", s)
}

type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (lr *lineReader) errorf(format string, args ...any) error {
	return fmt.Errorf("protoclust: line %d: %s", lr.line, fmt.Sprintf(format, args...))
}

// fields returns the fields of the next non-blank line.
func (lr *lineReader) fields() ([]string, error) {
	for lr.sc.Scan() {
		lr.line++
		if f := strings.Fields(lr.sc.Text()); len(f) > 0 {
			return f, nil
		}
	}
	if err := lr.sc.Err(); err != nil {
		return nil, fmt.Errorf("protoclust: read: %w", err)
	}
	return nil, fmt.Errorf("protoclust: line %d: %w", lr.line, io.ErrUnexpectedEOF)
}

// labelled reads a line starting with label and returns the remaining fields.
func (lr *lineReader) labelled(label string) ([]string, error) {
	f, err := lr.fields()
	if err != nil {
		return nil, err
	}
	if f[0] != label {
		return nil, lr.errorf("expected %q, got %q", label, f[0])
	}
	return f[1:], nil
}

func (lr *lineReader) count(label string) (int, error) {
	f, err := lr.labelled(label)
	if err != nil {
		return 0, err
	}
	if len(f) != 1 {
		return 0, lr.errorf("%s needs one count", label)
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || n < 0 {
		return 0, lr.errorf("bad %s count %q", label, f[0])
	}
	return n, nil
}

func (lr *lineReader) floats(label string, n int) ([]float64, error) {
	f, err := lr.labelled(label)
	if err != nil {
		return nil, err
	}
	if len(f) != n {
		return nil, lr.errorf("%s needs %d values, got %d", label, n, len(f))
	}
	out := make([]float64, n)
	for i, s := range f {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, lr.errorf("bad %s value %q", label, s)
		}
		out[i] = v
	}
	return out, nil
}

func (lr *lineReader) prototype(n int) (*Prototype, error) {
	head, err := lr.fields()
	if err != nil {
		return nil, err
	}
	if len(head) != 3 {
		return nil, lr.errorf("prototype header needs 3 fields, got %d", len(head))
	}
	p := &Prototype{}
	switch head[0] {
	case "significant":
		p.Significant = true
	case "insignificant":
	default:
		return nil, lr.errorf("unknown significance %q", head[0])
	}
	if p.Style, err = parseStyle(head[1]); err != nil {
		return nil, lr.errorf("%v", err)
	}
	if p.NumSamples, err = strconv.Atoi(head[2]); err != nil || p.NumSamples < 0 {
		return nil, lr.errorf("bad sample count %q", head[2])
	}
	if p.Mean, err = lr.floats("mean", n); err != nil {
		return nil, err
	}

	var dists []Distribution
	if p.Style == Mixed {
		f, err := lr.labelled("distributions")
		if err != nil {
			return nil, err
		}
		if len(f) != n {
			return nil, lr.errorf("distributions needs %d values, got %d", n, len(f))
		}
		dists = make([]Distribution, n)
		for i, s := range f {
			if dists[i], err = parseDistribution(s); err != nil {
				return nil, lr.errorf("%v", err)
			}
		}
	}

	nv := n
	if p.Style == Spherical {
		nv = 1
	}
	variance, err := lr.floats("variance", nv)
	if err != nil {
		return nil, err
	}
	for _, v := range variance {
		if v <= 0 {
			return nil, lr.errorf("variance must be positive, got %v", v)
		}
	}

	p.TotalMagnitude = 1
	switch p.Style {
	case Spherical:
		s := &SphericalShape{Variance: variance[0], Magnitude: normalMagnitudeOf(variance[0]), Weight: 1 / variance[0]}
		p.Shape = s
		p.TotalMagnitude = math.Pow(s.Magnitude, float64(n))
	case Elliptical:
		s := &EllipticalShape{Variance: variance, Magnitude: make([]float64, n), Weight: make([]float64, n)}
		for i, v := range variance {
			s.Magnitude[i] = normalMagnitudeOf(v)
			s.Weight[i] = 1 / v
			p.TotalMagnitude *= s.Magnitude[i]
		}
		p.Shape = s
	case Mixed:
		s := &MixedShape{Dims: make([]MixedDim, n)}
		for i, v := range variance {
			d := MixedDim{Distribution: dists[i], Variance: v}
			if d.Distribution == Normal {
				d.Magnitude = normalMagnitudeOf(v)
				d.Weight = 1 / v
			} else {
				d.Magnitude = 1 / (2 * v)
			}
			s.Dims[i] = d
			p.TotalMagnitude *= d.Magnitude
		}
		p.Shape = s
	}
	p.LogMagnitude = math.Log(p.TotalMagnitude)
	return p, nil
}
