// Package format encodes and decodes the fixed binary records of the ZIP
// container: local file headers, data descriptors, central directory
// headers, ZIP64 end records and the end of central directory record.
//
// All multi-byte fields are little-endian. The layouts follow PKWARE's
// APPNOTE.TXT version 6.3.
package format
