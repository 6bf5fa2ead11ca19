package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV_Header(t *testing.T) {
	data, err := EncodeWAV(make([]float32, 16000), 16000)
	if err != nil {
		t.Fatal(err)
	}

	if len(data) != 44+16000*2 {
		t.Fatalf("expected 44-byte header plus 16-bit PCM, got %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Errorf("expected 16 bits per sample, got %d", bits)
	}
	if channels := binary.LittleEndian.Uint16(data[22:24]); channels != 1 {
		t.Errorf("expected mono, got %d channels", channels)
	}
}

func TestEncodeWAV_Errors(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]float32{0.1}, 0); err == nil {
		t.Error("expected error for invalid sample rate")
	}
}

func TestFloat32ToInt16_Clipping(t *testing.T) {
	out := Float32ToInt16([]float32{0, 1.5, -1.5, 1, -1})

	if out[0] != 0 {
		t.Errorf("expected 0, got %d", out[0])
	}
	if out[1] != 32767 {
		t.Errorf("expected positive clip to 32767, got %d", out[1])
	}
	if out[2] != -32768 {
		t.Errorf("expected negative clip to -32768, got %d", out[2])
	}
	if out[3] != 32767 {
		t.Errorf("expected full-scale 1.0 -> 32767, got %d", out[3])
	}
	if out[4] != -32768 {
		t.Errorf("expected full-scale -1.0 -> -32768, got %d", out[4])
	}
}

func TestInt16ToBytes_LittleEndian(t *testing.T) {
	b := Int16ToBytes([]int16{0x0102})
	if len(b) != 2 || b[0] != 0x02 || b[1] != 0x01 {
		t.Errorf("expected little-endian encoding, got %v", b)
	}
}
