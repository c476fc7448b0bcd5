// Package qrchain computes the hash chain linking QR scans. Each entry
// commits to its predecessor's hash, so the chain can be replayed and
// verified from the first scan.
package qrchain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Hash commits a scan to the previous chain entry. Timestamps are hashed
// at second precision so round-tripping through SQLite is stable.
func Hash(prevHash, qrID string, scannedAt time.Time, ipHash string) string {
	sum := sha256.Sum256([]byte(prevHash + "|" + qrID + "|" + strconv.FormatInt(scannedAt.UTC().Unix(), 10) + "|" + ipHash))
	return hex.EncodeToString(sum[:])
}
