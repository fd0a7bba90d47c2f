// Package rawspeed implements the core decompression kernels used when
// decoding RAW camera images: the third-generation Samsung SRW codec
// (TIFF compression tag 32773) and the VC-5 subband-wavelet codec used
// by GoPro.
//
// The package deliberately excludes container parsing. Callers locate
// the compressed strip themselves and hand each codec an immutable byte
// window plus a pre-sized output buffer:
//
//	img := rawspeed.NewImage16(width, height)
//	err := rawspeed.DecodeSRW3(strip, img, 12, rawspeed.Options{})
//
// Both codecs decode strictly forward, are bit-exact with the reference
// decoders, and fail fast on any stream invariant violation.
package rawspeed
