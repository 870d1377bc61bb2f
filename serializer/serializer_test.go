package serializer

import (
	"strings"
	"testing"
)

type payload struct {
	ID    string `json:"id" msgpack:"id"`
	Count int    `json:"count" msgpack:"count"`
}

func TestJSONRoundTrip(t *testing.T) {
	s := JSON[payload]{}
	in := payload{ID: "p1", Count: 7}
	b, err := s.Dump(in)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out, err := s.Load(b)
	if err != nil || out != in {
		t.Fatalf("Load: %v %+v", err, out)
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	s := Msgpack[payload]{}
	in := payload{ID: "p2", Count: -1}
	b, err := s.Dump(in)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out, err := s.Load(b)
	if err != nil || out != in {
		t.Fatalf("Load: %v %+v", err, out)
	}
}

func TestCBORDeterministicRoundTrip(t *testing.T) {
	s := MustCBOR[payload](true)
	in := payload{ID: "p3", Count: 42}
	b1, err := s.Dump(in)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	b2, _ := s.Dump(in)
	if string(b1) != string(b2) {
		t.Fatalf("deterministic encoding produced differing bytes")
	}
	out, err := s.Load(b1)
	if err != nil || out != in {
		t.Fatalf("Load: %v %+v", err, out)
	}
}

func TestStringAndBytesIdentity(t *testing.T) {
	if b, _ := (String{}).Dump("héllo"); string(b) != "héllo" {
		t.Fatalf("String.Dump mangled input: %q", b)
	}
	raw := []byte{0x00, 0xff}
	if b, _ := (Bytes{}).Dump(raw); &b[0] != &raw[0] {
		t.Fatalf("Bytes.Dump should be identity")
	}
}

func TestLimitRejectsOversizedPayload(t *testing.T) {
	s := Limit[string]{Inner: String{}, MaxLoad: 4}
	if _, err := s.Load([]byte("longer than four")); err == nil ||
		!strings.Contains(err.Error(), "payload too large") {
		t.Fatalf("expected size error, got %v", err)
	}
	if v, err := s.Load([]byte("ok")); err != nil || v != "ok" {
		t.Fatalf("small payload should pass: %v %q", err, v)
	}
}
