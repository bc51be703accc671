package retriever

import (
	"math"
	"testing"
)

func TestFloat32BlobRoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0.5, -1.25, 0, 3.75}
	out := decodeFloat32Blob(encodeFloat32Blob(in))

	if len(out) != len(in) {
		t.Fatalf("expected %d values, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("value %d: expected %v, got %v", i, in[i], out[i])
		}
	}
}

func TestDecodeFloat32BlobInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		blob []byte
	}{
		{name: "empty", blob: nil},
		{name: "truncated value", blob: []byte{0x01, 0x02, 0x03}},
		{name: "trailing partial value", blob: []byte{0, 0, 0, 0, 0x01}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := decodeFloat32Blob(tc.blob); got != nil {
				t.Errorf("expected nil for invalid blob, got %v", got)
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{name: "identical vectors", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "opposite vectors", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "orthogonal vectors", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "zero vector yields zero", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "dimension mismatch", a: []float32{1}, b: []float32{1, 2}, wantErr: true},
		{name: "empty vectors", a: nil, b: nil, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := cosineSimilarity(tc.a, tc.b)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
