package serializer

import (
	"bufio"
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, write func(*bufio.Writer) error, read func(*bufio.Reader) error) {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := write(w); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	r := bufio.NewReader(&buf)
	if err := read(r); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestFieldBytesRoundTrip(t *testing.T) {
	want := []byte("hello, replica")
	roundTrip(t,
		func(w *bufio.Writer) error { return WriteFieldBytes(w, want) },
		func(r *bufio.Reader) error {
			got, err := ReadFieldBytes(r)
			if err != nil {
				return err
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("got %q, want %q", got, want)
			}
			return nil
		},
	)
}

func TestEmptyFieldBytesRoundTrip(t *testing.T) {
	roundTrip(t,
		func(w *bufio.Writer) error { return WriteFieldBytes(w, nil) },
		func(r *bufio.Reader) error {
			got, err := ReadFieldBytes(r)
			if err != nil {
				return err
			}
			if len(got) != 0 {
				t.Fatalf("got %v, want empty", got)
			}
			return nil
		},
	)
}

func TestStringRoundTrip(t *testing.T) {
	roundTrip(t,
		func(w *bufio.Writer) error { return WriteString(w, "node-1") },
		func(r *bufio.Reader) error {
			got, err := ReadString(r)
			if err != nil {
				return err
			}
			if got != "node-1" {
				t.Fatalf("got %q, want %q", got, "node-1")
			}
			return nil
		},
	)
}

func TestUint64RoundTrip(t *testing.T) {
	roundTrip(t,
		func(w *bufio.Writer) error { return WriteUint64(w, 0xdeadbeef) },
		func(r *bufio.Reader) error {
			got, err := ReadUint64(r)
			if err != nil {
				return err
			}
			if got != 0xdeadbeef {
				t.Fatalf("got %x, want %x", got, 0xdeadbeef)
			}
			return nil
		},
	)
}

func TestInt64RoundTrip(t *testing.T) {
	roundTrip(t,
		func(w *bufio.Writer) error { return WriteInt64(w, -42) },
		func(r *bufio.Reader) error {
			got, err := ReadInt64(r)
			if err != nil {
				return err
			}
			if got != -42 {
				t.Fatalf("got %d, want -42", got)
			}
			return nil
		},
	)
}

func TestBoolRoundTrip(t *testing.T) {
	for _, want := range []bool{true, false} {
		want := want
		roundTrip(t,
			func(w *bufio.Writer) error { return WriteBool(w, want) },
			func(r *bufio.Reader) error {
				got, err := ReadBool(r)
				if err != nil {
					return err
				}
				if got != want {
					t.Fatalf("got %v, want %v", got, want)
				}
				return nil
			},
		)
	}
}

func TestMultipleFieldsInSequence(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteUint64(w, 7); err != nil {
		t.Fatal(err)
	}
	if err := WriteString(w, "a"); err != nil {
		t.Fatal(err)
	}
	if err := WriteInt64(w, 99); err != nil {
		t.Fatal(err)
	}
	if err := WriteBool(w, true); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := bufio.NewReader(&buf)
	counter, err := ReadUint64(r)
	if err != nil || counter != 7 {
		t.Fatalf("counter = %d, %v, want 7, nil", counter, err)
	}
	nodeID, err := ReadString(r)
	if err != nil || nodeID != "a" {
		t.Fatalf("nodeID = %q, %v, want a, nil", nodeID, err)
	}
	key, err := ReadInt64(r)
	if err != nil || key != 99 {
		t.Fatalf("key = %d, %v, want 99, nil", key, err)
	}
	ok, err := ReadBool(r)
	if err != nil || !ok {
		t.Fatalf("ok = %v, %v, want true, nil", ok, err)
	}
}
