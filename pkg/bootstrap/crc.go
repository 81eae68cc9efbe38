// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootstrap

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CalculateCRC computes the CRC32C (Castagnoli) checksum for the given data
func CalculateCRC(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}
