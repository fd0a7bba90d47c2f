package rawspeed

import (
	"errors"
	"testing"
)

func TestDecodeSRW_Dispatch(t *testing.T) {
	const width, height, initVal = 16, 1, 100
	strip := buildSRW3(
		func(w *bitWriterMSB32) {
			srw3Header(w, width, height, 12, srw3OptSkip|srw3OptQP, initVal)
		},
		func(w *bitWriterMSB32) {
			w.writeBits(1, 1)
			writeDiffHeaderZeroWidth(w)
		},
	)

	tests := []struct {
		name        string
		compression int
		bits        int
		want        error
	}{
		{name: "third generation", compression: SRWCompressionV2, bits: 12},
		{name: "uncompressed", compression: SRWCompressionUncompressed, bits: 12, want: ErrUnsupported},
		{name: "v0", compression: SRWCompressionV0, bits: 12, want: ErrUnsupported},
		{name: "v1", compression: SRWCompressionV1, bits: 12, want: ErrUnsupported},
		{name: "unknown tag", compression: 32768, bits: 12, want: ErrUnsupported},
		{name: "bad depth", compression: SRWCompressionV2, bits: 10, want: ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := NewImage16(width, height)
			err := DecodeSRW(tt.compression, strip, img, tt.bits, Options{})
			if tt.want == nil {
				if err != nil {
					t.Fatalf("DecodeSRW: %v", err)
				}
				for i, px := range img.Pix {
					if px != initVal {
						t.Fatalf("pixel %d = %d, want %d", i, px, initVal)
					}
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("DecodeSRW = %v, want %v", err, tt.want)
			}
		})
	}
}
