package conn

import (
	"crypto/md5"
	"encoding/binary"
	"testing"
)

func TestHixieDigestMatchesManualComposition(t *testing.T) {
	key3 := []byte("12345678")
	got := hixieDigest(0x01020304, 0x05060708, key3)

	var want [16]byte
	binary.BigEndian.PutUint32(want[0:4], 0x01020304)
	binary.BigEndian.PutUint32(want[4:8], 0x05060708)
	copy(want[8:16], key3)
	sum := md5.Sum(want[:])

	if got != sum {
		t.Fatalf("hixieDigest = %x, want %x", got, sum)
	}
}

func TestHixieDigestDiffersOnDifferentKeys(t *testing.T) {
	key3 := []byte("abcdefgh")
	a := hixieDigest(1, 2, key3)
	b := hixieDigest(1, 3, key3)
	if a == b {
		t.Fatal("expected different digests for different key1")
	}
}
