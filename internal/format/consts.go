package format

// Record signatures.
const (
	LocalHeaderSig    = 0x04034b50
	CentralHeaderSig  = 0x02014b50
	DataDescriptorSig = 0x08074b50
	EndSig            = 0x06054b50
	Zip64EndSig       = 0x06064b50
	Zip64LocatorSig   = 0x07064b50
)

// Fixed record lengths, excluding variable-length fields.
const (
	LocalHeaderLen   = 30
	CentralHeaderLen = 46
	EndLen           = 22
	Zip64EndLen      = 56
	Zip64LocatorLen  = 20
)

// Extra field header IDs.
const (
	Zip64ExtraID   = 0x0001
	ExtTimeExtraID = 0x5455
	AESExtraID     = 0x9901
)

// Versions needed to extract, times ten.
const (
	VersionDefault = 20
	VersionZip64   = 45
	VersionAES     = 51
	VersionZstd    = 63
)

// Host systems recorded in the high byte of "version made by".
const (
	CreatorFAT    = 0
	CreatorUnix   = 3
	CreatorNTFS   = 10
	CreatorDarwin = 19
)

// CreatorVersion is the "version made by" value written by this package.
const CreatorVersion = CreatorUnix<<8 | VersionZstd

// maxCommentLen bounds the archive comment, which sits between the EOCD
// record and the end of the file.
const maxCommentLen = 0xffff
