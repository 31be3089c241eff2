package util

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{
			name:  "short text",
			input: []byte("Hello, World!"),
		},
		{
			name:  "empty input",
			input: []byte{},
		},
		{
			name:  "binary data",
			input: []byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe},
		},
		{
			name:  "sparse bitstring",
			input: append(make([]byte, 16384), 0x01),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := Compress(tt.input)
			if err != nil {
				t.Fatalf("Compress() failed: %v", err)
			}

			decompressed, err := Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress() failed: %v", err)
			}

			if !bytes.Equal(tt.input, decompressed) {
				t.Errorf("round trip changed data: in %v, out %v", tt.input, decompressed)
			}
		})
	}
}

func TestDecompressRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{
			name:  "empty data",
			input: []byte{},
		},
		{
			name:  "not gzip",
			input: []byte("plain text"),
		},
		{
			name:  "truncated gzip header",
			input: []byte{0x1f, 0x8b, 0x08, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decompress(tt.input); err == nil {
				t.Errorf("Decompress() accepted bad input")
			}
		})
	}
}

func TestBase64URLRoundTrip(t *testing.T) {
	input := append(make([]byte, 128), 0x80)

	encoded, err := CompressToBase64URL(input)
	if err != nil {
		t.Fatalf("CompressToBase64URL() failed: %v", err)
	}

	for _, c := range encoded {
		if c == '+' || c == '/' || c == '=' {
			t.Fatalf("encoded form contains non-url-safe byte %q", c)
		}
	}

	decoded, err := DecompressFromBase64URL(encoded)
	if err != nil {
		t.Fatalf("DecompressFromBase64URL() failed: %v", err)
	}

	if !bytes.Equal(input, decoded) {
		t.Errorf("round trip changed data")
	}
}

func TestDecompressFromBase64URLRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "invalid base64",
			input: "not-base64!@#",
		},
		{
			name:  "standard alphabet padding",
			input: "abc=",
		},
		{
			name:  "valid base64 but not gzip",
			input: "cGxhaW4gdGV4dA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecompressFromBase64URL(tt.input); err == nil {
				t.Errorf("DecompressFromBase64URL() accepted bad input")
			}
		})
	}
}
