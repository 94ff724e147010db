package conn

import (
	"crypto/md5"
	"encoding/binary"
)

// hixieDigest composes the 16-byte {htonl(key0), htonl(key1), key3} structure
// and MD5s it, per spec §4.4. key3 must be exactly 8 bytes.
func hixieDigest(key0, key1 uint32, key3 []byte) [16]byte {
	var buf [16]byte
	binary.BigEndian.PutUint32(buf[0:4], key0)
	binary.BigEndian.PutUint32(buf[4:8], key1)
	copy(buf[8:16], key3)
	return md5.Sum(buf[:])
}
