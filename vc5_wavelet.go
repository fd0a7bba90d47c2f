package rawspeed

import (
	hwyimage "github.com/ajroetker/go-highway/hwy/contrib/image"
)

// wavelet is a single level of the VC-5 2-D separable wavelet: four
// W x H signed-16 subbands plus per-band quantizers and a decoded-band
// mask. Band order is LL, HL, LH, HH. Band data is only meaningful once
// the band's mask bit is set; reconstruction requires all four.
type wavelet struct {
	width  int
	height int

	bands       [numWaveletBands]waveletBand
	decodedMask uint8
	initialized bool
}

type waveletBand struct {
	data  *hwyimage.Image[int16]
	quant int16
}

const numWaveletBands = 4

func (w *wavelet) initialize(width, height int) {
	w.width = width
	w.height = height
	for i := range w.bands {
		w.bands[i].data = hwyimage.NewImage[int16](width, height)
		w.bands[i].quant = 0
	}
	w.decodedMask = 0
	w.initialized = true
}

func (w *wavelet) setBandValid(band int) {
	w.decodedMask |= 1 << band
}

func (w *wavelet) isBandValid(band int) bool {
	return w.decodedMask&(1<<band) != 0
}

func (w *wavelet) allBandsValid() bool {
	return w.decodedMask == 1<<numWaveletBands-1
}

// dequantize multiplies every coefficient of a band by its quantizer.
func dequantize(band *hwyimage.Image[int16], height int, quant int16) {
	for y := range height {
		dequantizeRow(band.Row(y), quant)
	}
}

// lowRowClamped returns row y of img with symmetric extension at the
// vertical edges.
func lowRowClamped(img *hwyimage.Image[int16], y, height int) []int16 {
	if y < 0 {
		y = 0
	}
	if y >= height {
		y = height - 1
	}
	return img.ConstRow(y)
}

// reconstructPass runs the vertical half of the inverse 2/6 transform:
// it combines a lowpass band with its vertical-highpass counterpart
// into a W x 2H strip. Border rows use the 11/-4/+1 and 5/+4/-1 taps,
// interior rows the +-1/8 taps, each output halved after the highpass
// is folded in.
func (w *wavelet) reconstructPass(dst, high, low *hwyimage.Image[int16]) {
	width, height := w.width, w.height
	for y := range height {
		var l0, l1, l2 []int16
		h := high.ConstRow(y)
		even := dst.Row(2 * y)
		odd := dst.Row(2*y + 1)
		switch {
		case y == 0:
			l0 = low.ConstRow(0)
			l1 = lowRowClamped(low, 1, height)
			l2 = lowRowClamped(low, 2, height)
			for x := range width {
				e := (11*int(l0[x]) - 4*int(l1[x]) + int(l2[x]) + 4) >> 3
				o := (5*int(l0[x]) + 4*int(l1[x]) - int(l2[x]) + 4) >> 3
				even[x] = int16((e + int(h[x])) >> 1)
				odd[x] = int16((o - int(h[x])) >> 1)
			}
		case y == height-1:
			l0 = low.ConstRow(y)
			l1 = lowRowClamped(low, y-1, height)
			l2 = lowRowClamped(low, y-2, height)
			for x := range width {
				e := (5*int(l0[x]) + 4*int(l1[x]) - int(l2[x]) + 4) >> 3
				o := (11*int(l0[x]) - 4*int(l1[x]) + int(l2[x]) + 4) >> 3
				even[x] = int16((e + int(h[x])) >> 1)
				odd[x] = int16((o - int(h[x])) >> 1)
			}
		default:
			lm := low.ConstRow(y - 1)
			l0 = low.ConstRow(y)
			lp := low.ConstRow(y + 1)
			for x := range width {
				e := (8*int(l0[x]) + int(lm[x]) - int(lp[x]) + 4) >> 3
				o := (8*int(l0[x]) - int(lm[x]) + int(lp[x]) + 4) >> 3
				even[x] = int16((e + int(h[x])) >> 1)
				odd[x] = int16((o - int(h[x])) >> 1)
			}
		}
	}
}

// combineLowHighPass runs the horizontal half of the inverse transform
// on the two vertically reconstructed strips, producing 2H x 2W output.
// descaleShift undoes the encoder's per-level upscaling; clampDepth > 0
// additionally clamps each sample to the unsigned clampDepth-bit range.
func (w *wavelet) combineLowHighPass(dst, low, high *hwyimage.Image[int16], descaleShift, clampDepth int) {
	width := w.width
	rows := 2 * w.height

	at := func(row []int16, x int) int {
		// Symmetric extension at the horizontal edges.
		if x < 0 {
			x = 0
		}
		if x >= width {
			x = width - 1
		}
		return int(row[x])
	}

	for y := range rows {
		l := low.ConstRow(y)
		h := high.ConstRow(y)
		out := dst.Row(y)
		for x := range width {
			var e, o int
			switch {
			case x == 0:
				e = (11*at(l, 0) - 4*at(l, 1) + at(l, 2) + 4) >> 3
				o = (5*at(l, 0) + 4*at(l, 1) - at(l, 2) + 4) >> 3
			case x == width-1:
				e = (5*at(l, x) + 4*at(l, x-1) - at(l, x-2) + 4) >> 3
				o = (11*at(l, x) - 4*at(l, x-1) + at(l, x-2) + 4) >> 3
			default:
				e = (8*int(l[x]) + int(l[x-1]) - int(l[x+1]) + 4) >> 3
				o = (8*int(l[x]) - int(l[x-1]) + int(l[x+1]) + 4) >> 3
			}
			out[2*x] = int16((e + int(h[x])) >> 1)
			out[2*x+1] = int16((o - int(h[x])) >> 1)
		}
		descaleRow(out[:2*width], descaleShift)
		if clampDepth > 0 {
			clampRowUint(out[:2*width], clampDepth)
		}
	}
}

// reconstructLowband reconstructs this level into the 2W x 2H dst. The
// highpass bands must already be dequantized. When only the lowpass
// band is valid the highpass contribution is identically zero and the
// strips collapse to filtered copies of LL, which is taken as a fast
// path.
func (w *wavelet) reconstructLowband(dst *hwyimage.Image[int16], prescale, clampDepth int) {
	lowStrip := hwyimage.NewImage[int16](w.width, 2*w.height)
	highStrip := hwyimage.NewImage[int16](w.width, 2*w.height)

	if w.decodedMask == 1 {
		// Only LL present: both vertical combinations see zero highpass.
		zero := hwyimage.NewImage[int16](w.width, w.height)
		w.reconstructPass(lowStrip, zero, w.bands[0].data)
		// highStrip stays zero: HL and HH are both zero.
	} else {
		w.reconstructPass(lowStrip, w.bands[2].data, w.bands[0].data)
		w.reconstructPass(highStrip, w.bands[3].data, w.bands[1].data)
	}
	w.combineLowHighPass(dst, lowStrip, highStrip, prescale, clampDepth)
}
