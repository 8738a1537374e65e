//go:build !gcdebug

package gc

// verifySweepIntegrity is a no-op outside gcdebug builds: the CRC16 pass
// and per-byte state check in checksum_debug.go cost a full object-meta
// scan, not worth paying outside debugging.
func (h *Heap) verifySweepIntegrity(collectingOld bool) {}
