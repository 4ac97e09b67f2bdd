// Package spectra reads MS1/MS2 scans out of mzML, mzXML, MGF, and MS2
// files, dispatching by extension and magic bytes with transparent gzip
// decompression, the minimal surface components A/B need.
package spectra

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// Format identifies the on-disk spectrum dialect.
type Format int

const (
	FormatUnknown Format = iota
	FormatMzML
	FormatMzXML
	FormatMGF
	FormatMS2
)

// defaultPeakBufferHint is the per-scan peak-slice capacity Open falls back
// to when no caller-supplied hint is available (tests, ad-hoc callers).
const defaultPeakBufferHint = 256

// Scan is the minimal shape this package extracts from any supported
// format: m/z/intensity pairs for MS1, or a single precursor m/z for MS2.
type Scan struct {
	ScanNumber    int
	MSLevel       int
	RetentionTime float64 // seconds
	PrecursorMz   float64 // MS2 only
	Peaks         []Peak
}

// Peak is one centroided (m/z, intensity) pair.
type Peak struct {
	Mz        float64
	Intensity float64
}

// Reader yields scans one at a time in file order.
type Reader interface {
	Next() (Scan, error) // io.EOF when exhausted
}

// Open sniffs format by extension, then, when the extension is not
// recognized, by the first 512 bytes (any of the four dialects),
// transparently unwrapping gzip regardless of dialect. Equivalent to
// OpenWithHint(name, r, 0).
func Open(name string, r io.Reader) (Reader, error) {
	return OpenWithHint(name, r, 0)
}

// OpenWithHint behaves like Open but preallocates each scan's peak slice at
// peakBufferHint capacity (config.Config.PeakBufferHint, scaled from host
// memory) instead of growing it one append at a time. peakBufferHint <= 0
// falls back to defaultPeakBufferHint.
func OpenWithHint(name string, r io.Reader, peakBufferHint int) (Reader, error) {
	if peakBufferHint <= 0 {
		peakBufferHint = defaultPeakBufferHint
	}

	br := bufio.NewReader(r)
	peek, _ := br.Peek(2)
	if len(peek) == 2 && peek[0] == 0x1f && peek[1] == 0x8b {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("spectra: gzip header for %s: %w", name, err)
		}
		br = bufio.NewReader(gz)
	}

	format := sniffFormat(name, br)
	switch format {
	case FormatMzML, FormatMzXML:
		return newXMLReader(br, format, peakBufferHint), nil
	case FormatMGF:
		return newMGFReader(br, peakBufferHint), nil
	case FormatMS2:
		return newMS2Reader(br, peakBufferHint), nil
	default:
		return nil, fmt.Errorf("spectra: unrecognized format for %s", name)
	}
}

func sniffFormat(name string, br *bufio.Reader) Format {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, ".gz")
	switch {
	case strings.HasSuffix(lower, ".mzml"):
		return FormatMzML
	case strings.HasSuffix(lower, ".mzxml"):
		return FormatMzXML
	case strings.HasSuffix(lower, ".mgf"):
		return FormatMGF
	case strings.HasSuffix(lower, ".ms2"):
		return FormatMS2
	}

	peek, _ := br.Peek(512)
	text := string(peek)
	switch {
	case strings.Contains(text, "<mzML"):
		return FormatMzML
	case strings.Contains(text, "<mzXML"):
		return FormatMzXML
	case strings.Contains(text, "BEGIN IONS"):
		return FormatMGF
	case strings.HasPrefix(strings.TrimSpace(text), "S\t"):
		return FormatMS2
	}
	return FormatUnknown
}

// xmlReader streams mzML or mzXML scans with encoding/xml.Decoder.Token, the
// same incremental "read a token, dispatch on tag name, carry state forward"
// shape as the teacher's edirect/eutils xml.go block tokenizer, generalized
// here to vendor binary peak arrays instead of NCBI XML records. One Next()
// call advances the decoder exactly far enough to complete one scan/spectrum
// element and returns it. mzXML nests an MS1 <scan> around its dependent MS2
// <scan> children, so a stack of in-progress scans lets an inner scan return
// from Next() before its parent's closing tag is even seen; mzML's
// <spectrum> elements are flat, so only one builder is ever in progress.
type xmlReader struct {
	dec            *xml.Decoder
	format         Format
	peakBufferHint int
	nextIndex      int // fallback scan number when id/index/num are absent

	mzmlCur    *xmlScanBuilder
	mzxmlStack []*xmlScanBuilder
}

// xmlScanBuilder accumulates one scan/spectrum's state across XML tokens.
type xmlScanBuilder struct {
	scan Scan

	inPrecursor   bool
	inSelectedIon bool

	arrays   []decodedArray
	curArray *binaryArrayAccum
}

type decodedArray struct {
	kind   arrayKind
	values []float64
}

type arrayKind int

const (
	arrayUnknown arrayKind = iota
	arrayMz
	arrayIntensity
)

// binaryArrayAccum collects one mzML <binaryDataArray> (or mzXML <peaks>)
// element's encoding attributes and base64 payload until the closing tag,
// when it is decoded in one shot.
type binaryArrayAccum struct {
	kind       arrayKind
	bits       int // 32 or 64
	compressed bool
	base64Text strings.Builder
}

func newXMLReader(r io.Reader, format Format, peakBufferHint int) *xmlReader {
	return &xmlReader{
		dec:            xml.NewDecoder(r),
		format:         format,
		peakBufferHint: peakBufferHint,
	}
}

func (x *xmlReader) Next() (Scan, error) {
	if x.format == FormatMzXML {
		return x.nextMzXML()
	}
	return x.nextMzML()
}

func (x *xmlReader) nextMzML() (Scan, error) {
	for {
		tok, err := x.dec.Token()
		if err != nil {
			return Scan{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name.Local) {
			case "spectrum":
				x.nextIndex++
				b := &xmlScanBuilder{scan: Scan{Peaks: make([]Peak, 0, x.peakBufferHint)}}
				b.scan.ScanNumber = scanNumberFromAttrs(t, x.nextIndex)
				x.mzmlCur = b
			case "precursor":
				if x.mzmlCur != nil {
					x.mzmlCur.inPrecursor = true
				}
			case "selectedIon":
				if x.mzmlCur != nil {
					x.mzmlCur.inSelectedIon = true
				}
			case "cvParam":
				if x.mzmlCur != nil {
					applyMzMLCvParam(x.mzmlCur, t)
				}
			case "binaryDataArray":
				if x.mzmlCur != nil {
					x.mzmlCur.curArray = &binaryArrayAccum{bits: 64}
				}
			case "binary":
				if x.mzmlCur != nil && x.mzmlCur.curArray != nil {
					text, err := x.readCharData()
					if err != nil {
						return Scan{}, err
					}
					x.mzmlCur.curArray.base64Text.WriteString(text)
				}
			}
		case xml.EndElement:
			if x.mzmlCur == nil {
				continue
			}
			switch localName(t.Name.Local) {
			case "precursor":
				x.mzmlCur.inPrecursor = false
			case "selectedIon":
				x.mzmlCur.inSelectedIon = false
			case "binaryDataArray":
				if acc := x.mzmlCur.curArray; acc != nil {
					arr, err := decodeBinaryArray(acc, true)
					if err == nil {
						x.mzmlCur.arrays = append(x.mzmlCur.arrays, arr)
					}
					x.mzmlCur.curArray = nil
				}
			case "spectrum":
				b := x.mzmlCur
				x.mzmlCur = nil
				return finalizeScan(b), nil
			}
		}
	}
}

func (x *xmlReader) nextMzXML() (Scan, error) {
	for {
		tok, err := x.dec.Token()
		if err != nil {
			if err == io.EOF && len(x.mzxmlStack) > 0 {
				b := x.mzxmlStack[len(x.mzxmlStack)-1]
				x.mzxmlStack = x.mzxmlStack[:len(x.mzxmlStack)-1]
				return finalizeScan(b), nil
			}
			return Scan{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name.Local) {
			case "scan":
				x.nextIndex++
				b := &xmlScanBuilder{scan: Scan{Peaks: make([]Peak, 0, x.peakBufferHint)}}
				applyMzXMLScanAttrs(b, t, x.nextIndex)
				x.mzxmlStack = append(x.mzxmlStack, b)
			case "precursorMz":
				if len(x.mzxmlStack) > 0 {
					text, err := x.readCharData()
					if err != nil {
						return Scan{}, err
					}
					if mz, perr := strconv.ParseFloat(strings.TrimSpace(text), 64); perr == nil {
						x.mzxmlStack[len(x.mzxmlStack)-1].scan.PrecursorMz = mz
					}
				}
			case "peaks":
				if len(x.mzxmlStack) > 0 {
					cur := x.mzxmlStack[len(x.mzxmlStack)-1]
					acc := &binaryArrayAccum{kind: arrayUnknown}
					applyMzXMLPeaksAttrs(acc, t)
					text, err := x.readCharData()
					if err != nil {
						return Scan{}, err
					}
					acc.base64Text.WriteString(text)
					if pairs, derr := decodePeaksPairs(acc); derr == nil {
						cur.scan.Peaks = append(cur.scan.Peaks, pairs...)
					}
				}
			}
		case xml.EndElement:
			if localName(t.Name.Local) == "scan" && len(x.mzxmlStack) > 0 {
				b := x.mzxmlStack[len(x.mzxmlStack)-1]
				x.mzxmlStack = x.mzxmlStack[:len(x.mzxmlStack)-1]
				return finalizeScan(b), nil
			}
		}
	}
}

// readCharData consumes CharData tokens up to (but not past) the next
// StartElement/EndElement, concatenating them; XML text nodes can arrive
// split across multiple CharData tokens (e.g. around entity references).
// Every element this is called for (binary, peaks, precursorMz) carries only
// text content, so the first non-CharData token seen is always that
// element's own closing tag.
func (x *xmlReader) readCharData() (string, error) {
	var sb strings.Builder
	for {
		tok, err := x.dec.Token()
		if err != nil {
			return sb.String(), err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement, xml.EndElement:
			return sb.String(), nil
		}
	}
}

func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func attrVal(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if localName(a.Name.Local) == name {
			return a.Value, true
		}
	}
	return "", false
}

func scanNumberFromAttrs(t xml.StartElement, fallback int) int {
	if id, ok := attrVal(t, "id"); ok {
		if n, ok := scanNumberFromID(id); ok {
			return n
		}
	}
	if idx, ok := attrVal(t, "index"); ok {
		if n, err := strconv.Atoi(idx); err == nil {
			return n + 1
		}
	}
	return fallback
}

// scanNumberFromID extracts the trailing integer after "scan=" in a
// vendor-native mzML spectrum id such as
// "controllerType=0 controllerNumber=1 scan=123".
func scanNumberFromID(id string) (int, bool) {
	i := strings.Index(id, "scan=")
	if i < 0 {
		return 0, false
	}
	rest := id[i+len("scan="):]
	j := 0
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if j == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:j])
	if err != nil {
		return 0, false
	}
	return n, true
}

// mzML cvParam accessions this reader understands; anything else is
// ignored, matching spec.md §1's "full vendor fidelity out of scope".
const (
	accMSLevel         = "MS:1000511"
	accScanStartTime   = "MS:1000016"
	accSelectedIonMz   = "MS:1000744"
	accMzArray         = "MS:1000514"
	accIntensityArray  = "MS:1000515"
	accFloat32         = "MS:1000521"
	accFloat64         = "MS:1000523"
	accZlibCompression = "MS:1000574"
)

func applyMzMLCvParam(b *xmlScanBuilder, t xml.StartElement) {
	accession, _ := attrVal(t, "accession")
	value, _ := attrVal(t, "value")

	switch accession {
	case accMSLevel:
		if lvl, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			b.scan.MSLevel = lvl
		}
	case accScanStartTime:
		if !b.inPrecursor {
			if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				unit, _ := attrVal(t, "unitAccession")
				unitName, _ := attrVal(t, "unitName")
				if strings.Contains(unit, "0000031") || strings.Contains(strings.ToLower(unitName), "minute") {
					v *= 60
				}
				b.scan.RetentionTime = v
			}
		}
	case accSelectedIonMz:
		if b.inPrecursor && b.inSelectedIon {
			if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				b.scan.PrecursorMz = v
			}
		}
	case accMzArray:
		if b.curArray != nil {
			b.curArray.kind = arrayMz
		}
	case accIntensityArray:
		if b.curArray != nil {
			b.curArray.kind = arrayIntensity
		}
	case accFloat32:
		if b.curArray != nil {
			b.curArray.bits = 32
		}
	case accFloat64:
		if b.curArray != nil {
			b.curArray.bits = 64
		}
	case accZlibCompression:
		if b.curArray != nil {
			b.curArray.compressed = true
		}
	}
}

func applyMzXMLScanAttrs(b *xmlScanBuilder, t xml.StartElement, fallback int) {
	b.scan.ScanNumber = fallback
	if num, ok := attrVal(t, "num"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(num)); err == nil {
			b.scan.ScanNumber = n
		}
	}
	if lvl, ok := attrVal(t, "msLevel"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(lvl)); err == nil {
			b.scan.MSLevel = n
		}
	}
	if rt, ok := attrVal(t, "retentionTime"); ok {
		b.scan.RetentionTime = parseXSDuration(rt)
	}
}

func applyMzXMLPeaksAttrs(acc *binaryArrayAccum, t xml.StartElement) {
	acc.bits = 32
	if p, ok := attrVal(t, "precision"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			acc.bits = n
		}
	}
	if ct, ok := attrVal(t, "compressionType"); ok {
		acc.compressed = strings.Contains(strings.ToLower(ct), "zlib")
	}
}

// parseXSDuration parses the xs:duration subset mzXML uses for
// retentionTime, e.g. "PT59.95S" or "PT1M5.2S", into seconds.
func parseXSDuration(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "PT")
	total := 0.0
	numStart := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' {
			continue
		}
		v, err := strconv.ParseFloat(s[numStart:i], 64)
		if err == nil {
			switch c {
			case 'H':
				total += v * 3600
			case 'M':
				total += v * 60
			case 'S':
				total += v
			}
		}
		numStart = i + 1
	}
	return total
}

// decodeBinaryArray base64-decodes (and, if flagged, zlib-inflates) an mzML
// <binary> payload, then unpacks it into float64s at the recorded bit
// width, little-endian per the mzML binary-data-array spec.
func decodeBinaryArray(acc *binaryArrayAccum, littleEndian bool) (decodedArray, error) {
	raw, err := decodeBase64(acc.base64Text.String())
	if err != nil {
		return decodedArray{}, err
	}
	if acc.compressed {
		raw, err = inflateZlib(raw)
		if err != nil {
			return decodedArray{}, err
		}
	}
	values, err := unpackFloats(raw, acc.bits, littleEndian)
	if err != nil {
		return decodedArray{}, err
	}
	return decodedArray{kind: acc.kind, values: values}, nil
}

// decodePeaksPairs decodes an mzXML <peaks> payload (big-endian "network"
// byte order by convention, interleaved m/z,intensity pairs) into Peaks.
func decodePeaksPairs(acc *binaryArrayAccum) ([]Peak, error) {
	raw, err := decodeBase64(acc.base64Text.String())
	if err != nil {
		return nil, err
	}
	if acc.compressed {
		raw, err = inflateZlib(raw)
		if err != nil {
			return nil, err
		}
	}
	values, err := unpackFloats(raw, acc.bits, false)
	if err != nil {
		return nil, err
	}
	peaks := make([]Peak, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		peaks = append(peaks, Peak{Mz: values[i], Intensity: values[i+1]})
	}
	return peaks, nil
}

func decodeBase64(s string) ([]byte, error) {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		sb.WriteRune(r)
	}
	return base64.StdEncoding.DecodeString(sb.String())
}

func inflateZlib(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func unpackFloats(data []byte, bits int, littleEndian bool) ([]float64, error) {
	width := bits / 8
	if width != 4 && width != 8 {
		return nil, fmt.Errorf("spectra: unsupported float width %d bits", bits)
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("spectra: binary array length %d not a multiple of %d", len(data), width)
	}
	var order binary.ByteOrder = binary.BigEndian
	if littleEndian {
		order = binary.LittleEndian
	}
	n := len(data) / width
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		chunk := data[i*width : (i+1)*width]
		if width == 4 {
			out[i] = float64(math.Float32frombits(order.Uint32(chunk)))
		} else {
			out[i] = math.Float64frombits(order.Uint64(chunk))
		}
	}
	return out, nil
}

// finalizeScan pairs the mzML m/z and intensity arrays (mzXML's peaks are
// already paired) into b.scan.Peaks and returns the scan.
func finalizeScan(b *xmlScanBuilder) Scan {
	var mz, inten []float64
	for _, arr := range b.arrays {
		switch arr.kind {
		case arrayMz:
			mz = arr.values
		case arrayIntensity:
			inten = arr.values
		}
	}
	if len(mz) > 0 && len(mz) == len(inten) {
		peaks := make([]Peak, len(mz))
		for i := range mz {
			peaks[i] = Peak{Mz: mz[i], Intensity: inten[i]}
		}
		b.scan.Peaks = peaks
	}
	return b.scan
}

// mgfReader parses Mascot Generic Format: BEGIN IONS/END IONS blocks with
// PEPMASS/CHARGE/SCANS headers and "mz intensity" peak lines. MGF carries
// only MS2 fragmentation spectra, so every scan it yields is MSLevel 2.
type mgfReader struct {
	scanner        *bufio.Scanner
	peakBufferHint int
}

func newMGFReader(r io.Reader, peakBufferHint int) *mgfReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &mgfReader{scanner: s, peakBufferHint: peakBufferHint}
}

func (m *mgfReader) Next() (Scan, error) {
	var scan Scan
	inBlock := false

	for m.scanner.Scan() {
		line := strings.TrimSpace(m.scanner.Text())
		switch {
		case line == "BEGIN IONS":
			inBlock = true
			scan = Scan{MSLevel: 2, Peaks: make([]Peak, 0, m.peakBufferHint)}
		case line == "END IONS":
			return scan, nil
		case !inBlock:
			continue
		case strings.HasPrefix(line, "PEPMASS="):
			fields := strings.Fields(strings.TrimPrefix(line, "PEPMASS="))
			if len(fields) > 0 {
				scan.PrecursorMz, _ = strconv.ParseFloat(fields[0], 64)
			}
		case strings.HasPrefix(line, "SCANS="):
			scan.ScanNumber, _ = strconv.Atoi(strings.TrimPrefix(line, "SCANS="))
		case strings.HasPrefix(line, "RTINSECONDS="):
			scan.RetentionTime, _ = strconv.ParseFloat(strings.TrimPrefix(line, "RTINSECONDS="), 64)
		case strings.Contains(line, "="):
			// other headers (CHARGE, TITLE, ...) not needed by A/B/D.
		default:
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				mz, errMz := strconv.ParseFloat(fields[0], 64)
				inten, errIn := strconv.ParseFloat(fields[1], 64)
				if errMz == nil && errIn == nil {
					scan.Peaks = append(scan.Peaks, Peak{Mz: mz, Intensity: inten})
				}
			}
		}
	}
	if err := m.scanner.Err(); err != nil {
		return Scan{}, err
	}
	return Scan{}, io.EOF
}

// ms2Reader parses the line-oriented MS2 format: "S\t<lo>\t<hi>\t<precMz>"
// scan headers, "I\t..." info lines, and "<mz> <intensity>" peak lines. Like
// MGF, MS2 carries only fragmentation spectra, so every scan is MSLevel 2.
type ms2Reader struct {
	scanner        *bufio.Scanner
	pending        *Scan
	peakBufferHint int
}

func newMS2Reader(r io.Reader, peakBufferHint int) *ms2Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &ms2Reader{scanner: s, peakBufferHint: peakBufferHint}
}

func (m *ms2Reader) Next() (Scan, error) {
	var current *Scan
	if m.pending != nil {
		current = m.pending
		m.pending = nil
	}

	for m.scanner.Scan() {
		line := m.scanner.Text()
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "S\t"):
			fields := strings.Split(line, "\t")
			next := Scan{MSLevel: 2, Peaks: make([]Peak, 0, m.peakBufferHint)}
			if len(fields) > 1 {
				next.ScanNumber, _ = strconv.Atoi(fields[1])
			}
			if len(fields) > 3 {
				next.PrecursorMz, _ = strconv.ParseFloat(fields[3], 64)
			}
			if current != nil {
				m.pending = &next
				return *current, nil
			}
			current = &next
		case strings.HasPrefix(line, "I\t"):
			continue
		case strings.HasPrefix(line, "Z\t"):
			continue
		default:
			if current == nil {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				mz, errMz := strconv.ParseFloat(fields[0], 64)
				inten, errIn := strconv.ParseFloat(fields[1], 64)
				if errMz == nil && errIn == nil {
					current.Peaks = append(current.Peaks, Peak{Mz: mz, Intensity: inten})
				}
			}
		}
	}
	if err := m.scanner.Err(); err != nil {
		return Scan{}, err
	}
	if current != nil {
		return *current, nil
	}
	return Scan{}, io.EOF
}
