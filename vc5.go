package rawspeed

import (
	"encoding/binary"
	"fmt"

	hwyimage "github.com/ajroetker/go-highway/hwy/contrib/image"
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// VC-5 decompressor as used by GoPro RAW. The bitstream is a flat
// sequence of 16-bit tag/value pairs; large codeblocks deliver one
// subband of one channel each. A full frame carries four channels (one
// per CFA sample position) of three wavelet levels, ten subbands per
// channel, reconstructed bottom-up and interleaved back into the CFA
// pattern at the end.

// DecodeVC5 decodes a VC-5 bitstream into img. bits must be 10, 12 or
// 14; any other depth fails ErrUnsupported. bits is only validated: every
// output sample is the 16-bit log-curve value of a reconstructed sample
// clamped to 12 bits, whatever bits is.
func DecodeVC5(data []byte, img *Image16, bits int, opts Options) error {
	switch bits {
	case 10, 12, 14:
	default:
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
	}
	d := &vc5Decoder{
		data: data,
		img:  img,
		bits: bits,
		diag: opts.sink(),
		par:  opts.Parallel,
	}
	d.ctx.quantization = 1
	d.ctx.lowpassPrecision = 16
	d.ctx.imgFormat = vc5FormatRAW
	return d.decode()
}

// vc5Context holds the frame parameters accumulated from the tag
// stream. It mutates monotonically until the first codeblock arrives;
// after that the geometry fields are frozen.
type vc5Context struct {
	iChannel int
	iSubband int

	imgWidth  int
	imgHeight int
	imgFormat int

	patternWidth  int
	patternHeight int
	cps           int
	bpc           int

	lowpassPrecision int
	quantization     int16
}

type vc5Transform struct {
	wavelet  wavelet
	prescale int
}

type vc5Channel struct {
	transforms [vc5NumTransform]vc5Transform
}

type vc5Decoder struct {
	data []byte
	img  *Image16
	bits int
	diag DiagSink
	par  bool

	ctx      vc5Context
	channels [vc5NumChannels]vc5Channel
	frozen   bool
}

func (d *vc5Decoder) decode() error {
	pos := 0
	for pos+4 <= len(d.data) {
		tag := int(int16(binary.BigEndian.Uint16(d.data[pos:])))
		val := binary.BigEndian.Uint16(d.data[pos+2:])
		pos += 4

		optional := tag < 0
		if optional {
			tag = -tag
		}

		if tag&vc5TagLargeCodeblockMask == vc5TagLargeCodeblock {
			segments := int(tag&0xff)<<16 | int(val)
			size := 4 * segments
			if pos+size > len(d.data) {
				return fmt.Errorf("%w: codeblock of %d bytes exceeds stream", ErrBounds, size)
			}
			if err := d.decodeLargeCodeblock(d.data[pos : pos+size]); err != nil {
				return err
			}
			pos += size
			continue
		}

		if err := d.applyTag(tag, val, optional); err != nil {
			return err
		}
	}
	if pos != len(d.data) {
		return fmt.Errorf("%w: trailing %d bytes after tag stream", ErrCorrupted, len(d.data)-pos)
	}
	return d.decodeFinalWavelet()
}

func (d *vc5Decoder) applyTag(tag int, val uint16, optional bool) error {
	// Geometry tags freeze once the first codeblock has been decoded.
	frozenField := func(cur int) error {
		if d.frozen && cur != int(val) {
			return fmt.Errorf("%w: tag %#04x changed after first codeblock", ErrCorrupted, tag)
		}
		return nil
	}

	switch tag {
	case vc5TagChannelCount:
		if int(val) != vc5NumChannels {
			return fmt.Errorf("%w: %d channels", ErrUnsupported, val)
		}
	case vc5TagSubbandCount:
		if int(val) != vc5NumSubbands {
			return fmt.Errorf("%w: %d subbands", ErrUnsupported, val)
		}
	case vc5TagImageWidth:
		if err := frozenField(d.ctx.imgWidth); err != nil {
			return err
		}
		d.ctx.imgWidth = int(val)
	case vc5TagImageHeight:
		if err := frozenField(d.ctx.imgHeight); err != nil {
			return err
		}
		d.ctx.imgHeight = int(val)
	case vc5TagImageFormat:
		if int(val) != vc5FormatRAW {
			return fmt.Errorf("%w: image format %d", ErrUnsupported, val)
		}
		d.ctx.imgFormat = int(val)
	case vc5TagPatternWidth:
		if int(val) != 2 {
			return fmt.Errorf("%w: pattern width %d", ErrUnsupported, val)
		}
		d.ctx.patternWidth = int(val)
	case vc5TagPatternHeight:
		if int(val) != 2 {
			return fmt.Errorf("%w: pattern height %d", ErrUnsupported, val)
		}
		d.ctx.patternHeight = int(val)
	case vc5TagComponentsPerSample:
		if int(val) != 1 {
			return fmt.Errorf("%w: %d components per sample", ErrUnsupported, val)
		}
		d.ctx.cps = int(val)
	case vc5TagMaxBitsPerComponent:
		d.ctx.bpc = int(val)
	case vc5TagLowpassPrecision:
		if int(val) < vc5LowpassPrecisionMin || int(val) > vc5LowpassPrecisionMax {
			return fmt.Errorf("%w: lowpass precision %d", ErrUnsupported, val)
		}
		d.ctx.lowpassPrecision = int(val)
	case vc5TagSubbandNumber:
		if int(val) >= vc5NumSubbands {
			return fmt.Errorf("%w: subband number %d", ErrCorrupted, val)
		}
		d.ctx.iSubband = int(val)
	case vc5TagChannelNumber:
		if int(val) >= vc5NumChannels {
			return fmt.Errorf("%w: channel number %d", ErrCorrupted, val)
		}
		d.ctx.iChannel = int(val)
	case vc5TagQuantization:
		d.ctx.quantization = int16(val)
	case vc5TagPrescaleShift:
		for i := range vc5NumTransform {
			shift := int(val>>(14-2*i)) & 3
			for c := range d.channels {
				d.channels[c].transforms[i].prescale = shift
			}
		}
	default:
		if !optional {
			return fmt.Errorf("%w: unknown required tag %#04x", ErrCorrupted, tag)
		}
		// Unknown optional tags are skipped.
	}
	return nil
}

// setup validates the frame geometry against the output buffer and
// allocates the per-channel wavelet pyramids. Runs once, before the
// first codeblock.
func (d *vc5Decoder) setup() error {
	c := &d.ctx
	if c.patternWidth != 2 || c.patternHeight != 2 {
		return fmt.Errorf("%w: missing CFA pattern dimensions", ErrCorrupted)
	}
	// Three halvings per channel require pattern * 8 alignment.
	align := c.patternWidth << vc5NumTransform
	if c.imgWidth <= 0 || c.imgHeight <= 0 ||
		c.imgWidth%align != 0 || c.imgHeight%align != 0 {
		return fmt.Errorf("%w: %dx%d not aligned to %d", ErrDimension,
			c.imgWidth, c.imgHeight, align)
	}
	if c.imgWidth != d.img.Width || c.imgHeight != d.img.Height {
		return fmt.Errorf("%w: stream is %dx%d, buffer is %dx%d", ErrDimension,
			c.imgWidth, c.imgHeight, d.img.Width, d.img.Height)
	}

	chanWidth := c.imgWidth / c.patternWidth
	chanHeight := c.imgHeight / c.patternHeight
	for i := range d.channels {
		w, h := chanWidth, chanHeight
		for t := range d.channels[i].transforms {
			w /= 2
			h /= 2
			d.channels[i].transforms[t].wavelet.initialize(w, h)
		}
	}
	d.frozen = true
	d.diag.Eventf("vc5: %dx%d bpc=%d lowpass=%d", c.imgWidth, c.imgHeight,
		c.bpc, c.lowpassPrecision)
	return nil
}

func (d *vc5Decoder) decodeLargeCodeblock(payload []byte) error {
	if !d.frozen {
		if err := d.setup(); err != nil {
			return err
		}
	}

	idx := subbandWaveletIndex[d.ctx.iSubband]
	band := subbandBandIndex[d.ctx.iSubband]
	transforms := &d.channels[d.ctx.iChannel].transforms
	wv := &transforms[idx].wavelet

	if wv.isBandValid(band) {
		return fmt.Errorf("%w: channel %d subband %d decoded twice",
			ErrCorrupted, d.ctx.iChannel, d.ctx.iSubband)
	}

	var err error
	if d.ctx.iSubband == 0 {
		err = d.decodeLowPassBand(payload, wv)
	} else {
		err = d.decodeHighPassBand(payload, band, wv)
	}
	if err != nil {
		return err
	}
	wv.setBandValid(band)

	// Once a level is complete, its reconstruction becomes the lowpass
	// input of the next level up.
	if idx > 0 && wv.allBandsValid() {
		next := &transforms[idx-1].wavelet
		if next.isBandValid(0) {
			return fmt.Errorf("%w: channel %d level %d lowpass decoded twice",
				ErrCorrupted, d.ctx.iChannel, idx-1)
		}
		wv.reconstructLowband(next.bands[0].data, transforms[idx].prescale, 0)
		next.setBandValid(0)
	}
	return nil
}

func (d *vc5Decoder) decodeLowPassBand(payload []byte, wv *wavelet) error {
	br := newBitReaderMSB(payload)
	prec := uint(d.ctx.lowpassPrecision)
	dst := wv.bands[0].data
	for y := range wv.height {
		row := dst.Row(y)
		for x := range wv.width {
			v, err := br.getBits(prec)
			if err != nil {
				return err
			}
			row[x] = int16(v)
		}
	}
	wv.bands[0].quant = 1
	return nil
}

func (d *vc5Decoder) decodeHighPassBand(payload []byte, band int, wv *wavelet) error {
	if d.ctx.quantization == 0 {
		return fmt.Errorf("%w: zero quantizer", ErrCorrupted)
	}
	br := newBitReaderMSB(payload)
	dst := wv.bands[band].data

	n := wv.width * wv.height
	i := 0
	for i < n {
		value, count, err := getRLV(br)
		if err != nil {
			return err
		}
		if count == 0 && value == rlvMarkerBandEnd {
			return fmt.Errorf("%w: band end after %d of %d coefficients",
				ErrCorrupted, i, n)
		}
		if i+count > n {
			return fmt.Errorf("%w: band overrun at coefficient %d of %d",
				ErrCorrupted, i+count, n)
		}
		for ; count > 0; count-- {
			dst.Row(i / wv.width)[i%wv.width] = int16(value)
			i++
		}
	}
	// The band must terminate exactly here.
	value, count, err := getRLV(br)
	if err != nil {
		return err
	}
	if count != 0 || value != rlvMarkerBandEnd {
		return fmt.Errorf("%w: missing band end marker", ErrCorrupted)
	}

	wv.bands[band].quant = d.ctx.quantization
	dequantize(dst, wv.height, d.ctx.quantization)
	return nil
}

// getRLV decodes one run-length/variable-length codeword: count copies
// of value, with the sign of a nonzero value carried in a trailing bit.
// Band-end returns (rlvMarkerBandEnd, 0).
func getRLV(br *bitReaderMSB) (value, count int, err error) {
	var code uint32
	var length uint
	ti := 0
	for {
		bit, err := br.getBits(1)
		if err != nil {
			return 0, 0, err
		}
		code = code<<1 | bit
		length++
		for ti < len(rlvCodebook) && rlvCodebook[ti].size == length {
			e := rlvCodebook[ti]
			ti++
			if e.bits != code {
				continue
			}
			if e.count == 0 {
				switch e.value {
				case rlvMarkerBandEnd:
					return rlvMarkerBandEnd, 0, nil
				case rlvMarkerEscape:
					mag, err := br.getBits(16)
					if err != nil {
						return 0, 0, err
					}
					return signRLV(br, int(mag))
				}
			}
			if e.value != 0 {
				return signRLV(br, int(e.value))
			}
			return 0, int(e.count), nil
		}
		if ti == len(rlvCodebook) {
			return 0, 0, fmt.Errorf("%w: invalid coefficient code at bit %d",
				ErrCorrupted, br.bitPosition())
		}
	}
}

func signRLV(br *bitReaderMSB, mag int) (int, int, error) {
	neg, err := br.getBits(1)
	if err != nil {
		return 0, 0, err
	}
	if neg != 0 {
		return -mag, 1, nil
	}
	return mag, 1, nil
}

// decodeFinalWavelet reconstructs the outermost level of every channel
// and interleaves the four channel planes back into the CFA pattern.
// Channels are independent, so this fans out when Parallel is set.
func (d *vc5Decoder) decodeFinalWavelet() error {
	if !d.frozen {
		return fmt.Errorf("%w: no codeblocks in stream", ErrCorrupted)
	}
	for c := range d.channels {
		for t := range d.channels[c].transforms {
			if !d.channels[c].transforms[t].wavelet.allBandsValid() {
				return fmt.Errorf("%w: channel %d level %d incomplete at end of stream",
					ErrCorrupted, c, t)
			}
		}
	}

	chanWidth := d.ctx.imgWidth / d.ctx.patternWidth
	chanHeight := d.ctx.imgHeight / d.ctx.patternHeight
	var planes [vc5NumChannels]*hwyimage.Image[int16]

	reconstruct := func(c int) {
		planes[c] = hwyimage.NewImage[int16](chanWidth, chanHeight)
		tr := &d.channels[c].transforms[0]
		tr.wavelet.reconstructLowband(planes[c], tr.prescale, vc5LogTableBitwidth)
	}
	if d.par {
		pool := workerpool.New(vc5NumChannels)
		defer pool.Close()
		pool.ParallelForAtomic(vc5NumChannels, reconstruct)
	} else {
		for c := range d.channels {
			reconstruct(c)
		}
	}

	// Interleave the channel planes into the 2x2 CFA positions, mapping
	// the companded 12-bit samples through the log curve.
	logTable := vc5LogTable()
	for y := range chanHeight {
		top := d.img.Row(2 * y)
		bot := d.img.Row(2*y + 1)
		p0 := planes[0].ConstRow(y)
		p1 := planes[1].ConstRow(y)
		p2 := planes[2].ConstRow(y)
		p3 := planes[3].ConstRow(y)
		for x := range chanWidth {
			top[2*x] = logTable.at(int(p0[x]))
			top[2*x+1] = logTable.at(int(p1[x]))
			bot[2*x] = logTable.at(int(p2[x]))
			bot[2*x+1] = logTable.at(int(p3[x]))
		}
	}
	return nil
}
