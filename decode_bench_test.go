// Copyright 2025 rawspeed Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rawspeed

import "testing"

func benchmarkSRW3Strip(width, height int) []byte {
	row := func(w *bitWriterMSB32) {
		for col := 0; col < width; col += 16 {
			w.writeBits(1, 1) // keep motion 7
			for i := 0; i < 4; i++ {
				w.writeBits(3, 2) // explicit width
			}
			for i := 0; i < 4; i++ {
				w.writeBits(8, 4) // 8 bits per difference
			}
			for i := 0; i < 16; i++ {
				w.writeBits(uint32(col+i)&0xFF, 8)
			}
		}
	}
	rows := make([]func(*bitWriterMSB32), height)
	for i := range rows {
		rows[i] = row
	}
	return buildSRW3(func(w *bitWriterMSB32) {
		srw3Header(w, uint32(width), uint32(height), 12, srw3OptSkip|srw3OptQP, 2048)
	}, rows...)
}

func BenchmarkDecodeSRW3(b *testing.B) {
	const width, height = 1024, 768
	data := benchmarkSRW3Strip(width, height)
	img := NewImage16(width, height)
	b.SetBytes(int64(width * height * 2))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := DecodeSRW3(data, img, 12, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeVC5(b *testing.B) {
	const width, height = 256, 256
	data := buildConstantFrame(b, width, height, [4]uint16{64, 128, 192, 256})
	img := NewImage16(width, height)
	b.SetBytes(int64(width * height * 2))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := DecodeVC5(data, img, 12, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeVC5Parallel(b *testing.B) {
	const width, height = 256, 256
	data := buildConstantFrame(b, width, height, [4]uint16{64, 128, 192, 256})
	img := NewImage16(width, height)
	b.SetBytes(int64(width * height * 2))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := DecodeVC5(data, img, 12, Options{Parallel: true}); err != nil {
			b.Fatal(err)
		}
	}
}
