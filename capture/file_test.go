// SPDX-License-Identifier: EPL-2.0

package capture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ik5/funcgen/sample"
)

type countingWriter struct {
	bytes.Buffer
	calls int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.calls++
	return w.Buffer.Write(p)
}

func TestBuffer_WriteTo_SingleWrite(t *testing.T) {
	t.Parallel()

	buf, _ := NewBuffer(16, 2, 2)
	copy(buf.Records, []int64{1, -2, 0x1234, 0})

	w := &countingWriter{}
	n, err := buf.WriteTo(w)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if w.calls != 1 {
		t.Errorf("WriteTo() made %d writes, want 1", w.calls)
	}
	if n != 8 {
		t.Errorf("WriteTo() = %d bytes, want 8", n)
	}
	want := []byte{0x01, 0x00, 0xfe, 0xff, 0x34, 0x12, 0x00, 0x00}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("WriteTo() wrote % x, want % x", w.Bytes(), want)
	}
}

func TestWriteFile_ReadRecords(t *testing.T) {
	t.Parallel()

	for _, width := range []int{16, 32, 64} {
		buf, _ := NewBuffer(width, 3, 2)
		copy(buf.Records, []int64{0, 1, -1, 42, -300, 7})

		path := filepath.Join(t.TempDir(), "data.bin")
		if err := WriteFile(path, buf); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() != int64(6*width/8) {
			t.Errorf("width %d: file size = %d, want %d", width, info.Size(), 6*width/8)
		}

		f, _ := os.Open(path)
		got, err := ReadRecords(f, width)
		f.Close()
		if err != nil {
			t.Fatalf("ReadRecords() error = %v", err)
		}
		for i := range got {
			if got[i] != buf.Records[i] {
				t.Errorf("width %d: record %d = %d, want %d", width, i, got[i], buf.Records[i])
			}
		}
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	t.Parallel()

	buf, _ := NewBuffer(16, 1, 1)
	path := filepath.Join(t.TempDir(), "missing", "data.bin")

	err := WriteFile(path, buf)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("WriteFile() error = %v, want os.ErrNotExist", err)
	}
	if want := "creating record file " + path; !strings.Contains(err.Error(), want) {
		t.Errorf("WriteFile() error = %q, want it to mention %q", err, want)
	}

	err = WriteWAVFile(path, buf, sample.S16LE, 8000, 1)
	if !errors.Is(err, os.ErrNotExist) || !strings.Contains(err.Error(), "creating wav file") {
		t.Errorf("WriteWAVFile() error = %v", err)
	}
}

func TestReadRecords_Truncated(t *testing.T) {
	t.Parallel()

	if _, err := ReadRecords(bytes.NewReader([]byte{1, 2, 3}), 16); !errors.Is(err, ErrTruncatedFile) {
		t.Errorf("ReadRecords() error = %v, want ErrTruncatedFile", err)
	}
	if _, err := ReadRecords(bytes.NewReader(nil), 24); !errors.Is(err, ErrInvalidWidth) {
		t.Errorf("ReadRecords() error = %v, want ErrInvalidWidth", err)
	}
}

func TestSplitChannels(t *testing.T) {
	t.Parallel()

	// stereo S16: left -2, right 300
	frame := make([]byte, 4)
	sample.Encode(sample.S16LE, -2, frame[0:2])
	sample.Encode(sample.S16LE, 300, frame[2:4])
	rec := RecordOf(frame)

	chans, err := SplitChannels([]int64{rec, 0}, sample.S16LE, 2)
	if err != nil {
		t.Fatal(err)
	}
	if chans[0][0] != -2 || chans[1][0] != 300 || chans[0][1] != 0 {
		t.Errorf("SplitChannels() = %v", chans)
	}

	// stereo S24_LE in 64-bit records, through a file round trip
	wide := make([]byte, 8)
	sample.Encode(sample.S24LE, -8388608, wide[0:4])
	sample.Encode(sample.S24LE, 8388607, wide[4:8])
	buf, _ := NewBuffer(64, 1, 1)
	buf.Records[0] = RecordOf(wide)

	back, err := ReadRecords(bytes.NewReader(buf.Bytes()), 64)
	if err != nil {
		t.Fatal(err)
	}
	chans, err = SplitChannels(back, sample.S24LE, 2)
	if err != nil {
		t.Fatal(err)
	}
	if chans[0][0] != -8388608 || chans[1][0] != 8388607 {
		t.Errorf("S24_LE SplitChannels() = %v", chans)
	}

	if _, err := SplitChannels(nil, sample.S32LE, 4); !errors.Is(err, ErrFrameTooWide) {
		t.Errorf("SplitChannels(4x32) error = %v, want ErrFrameTooWide", err)
	}
}
