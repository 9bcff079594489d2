package format

import "io/fs"

// Unix file type bits and MS-DOS attribute bits carried in external attributes.
const (
	unixTypeMask  = 0o170000
	unixDir       = 0o040000
	unixRegular   = 0o100000
	unixSymlink   = 0o120000
	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// ModeToExternal encodes mode as ZIP external attributes: the Unix mode in the
// high 16 bits and the MS-DOS attribute byte in the low bits.
func ModeToExternal(mode fs.FileMode) uint32 {
	unix := uint32(mode.Perm())
	if mode.IsDir() {
		return (unix|unixDir)<<16 | msdosDir
	}
	attrs := (unix | unixRegular) << 16
	if mode&0o200 == 0 {
		attrs |= msdosReadOnly
	}
	return attrs
}

// ExternalToMode decodes external attributes written by creator. isDir comes
// from the entry name, which is authoritative for directories.
func ExternalToMode(creator uint16, attrs uint32, isDir bool) fs.FileMode {
	var mode fs.FileMode
	switch creator >> 8 {
	case CreatorUnix, CreatorDarwin:
		unix := attrs >> 16
		mode = fs.FileMode(unix) & fs.ModePerm
		if unix&unixTypeMask == unixSymlink && !isDir {
			mode |= fs.ModeSymlink
		}
	}
	if mode.Perm() == 0 {
		switch {
		case isDir || attrs&msdosDir != 0:
			mode |= 0o755
		case attrs&msdosReadOnly != 0:
			mode |= 0o444
		default:
			mode |= 0o644
		}
	}
	if isDir {
		mode |= fs.ModeDir
	}
	return mode
}
