package scan

import (
	"crypto/rand"
	"testing"
)

func TestEntropy_Empty(t *testing.T) {
	if got := Entropy(nil); got != 0 {
		t.Errorf("Entropy(nil) = %f, want 0", got)
	}
}

func TestEntropy_SingleByteRepeated(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = 0x41
	}
	if got := Entropy(data); got != 0 {
		t.Errorf("Entropy(repeated byte) = %f, want 0", got)
	}
}

func TestEntropy_Range(t *testing.T) {
	inputs := [][]byte{
		[]byte("hello world"),
		{0x00},
		{0x00, 0xFF, 0x00, 0xFF},
		make([]byte, 1000),
	}
	for _, data := range inputs {
		got := Entropy(data)
		if got < 0 || got > 8 {
			t.Errorf("Entropy(%d bytes) = %f, outside [0, 8]", len(data), got)
		}
	}
}

func TestEntropy_RandomApproachesEight(t *testing.T) {
	data := make([]byte, 256*1024)
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}
	got := Entropy(data)
	if got < 7.9 {
		t.Errorf("Entropy(random 256KB) = %f, want >= 7.9", got)
	}
	if got > 8 {
		t.Errorf("Entropy(random 256KB) = %f, exceeds theoretical max", got)
	}
}

func TestEntropy_AllByteValuesUniform(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	got := Entropy(data)
	if got < 7.999 || got > 8 {
		t.Errorf("Entropy(uniform histogram) = %f, want 8", got)
	}
}

func TestTailEntropy_WindowOnly(t *testing.T) {
	// Low-entropy body, random tail: the tail window must see the spike.
	data := make([]byte, 8192)
	if _, err := rand.Read(data[len(data)-1024:]); err != nil {
		t.Fatal(err)
	}

	whole := Entropy(data)
	tail := TailEntropy(data, 1024)
	if tail <= whole {
		t.Errorf("tail entropy %f should exceed whole-file entropy %f", tail, whole)
	}
	if tail < 7.0 {
		t.Errorf("TailEntropy(random tail) = %f, want >= 7.0", tail)
	}
}

func TestTailEntropy_ShortBuffer(t *testing.T) {
	data := []byte{1, 2, 3}
	if got, want := TailEntropy(data, 1024), Entropy(data); got != want {
		t.Errorf("TailEntropy on short buffer = %f, want whole-buffer entropy %f", got, want)
	}
}
