package util

import "testing"

func TestReadnWriten(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 4, 0, 0xdeadbeef)
	if got := Readn(buf, 4, 0); got != 0xdeadbeef {
		t.Fatalf("got %#x", got)
	}
	WriteU16LE(buf, 8, 0xabcd)
	if got := ReadU16LE(buf, 8); got != 0xabcd {
		t.Fatalf("got %#x", got)
	}
}

func TestRoundUpDown(t *testing.T) {
	if Roundup(4097, 4096) != 8192 {
		t.Fatal("roundup")
	}
	if Rounddown(4097, 4096) != 4096 {
		t.Fatal("rounddown")
	}
	if Roundup(4096, 4096) != 4096 {
		t.Fatal("roundup exact")
	}
}
