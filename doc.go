// Package zipkit reads and writes standard ZIP archives with optional
// password-based encryption.
//
// An [Archive] is a session opened with [Open] for reading or [Create] for
// writing. Read sessions parse the central directory once and decode entries
// on demand; write sessions append entries and emit the central directory on
// [Archive.Close]. Archives written by zipkit open in common ZIP tools.
//
// Entries are compressed with deflate by default; zstd (method 93) is also
// supported. With a password set, entries are encrypted with WinZip AES-256
// unless [WithEncryption] selects traditional ZipCrypto.
//
// # Quick Start
//
// Pack a directory:
//
//	stats, err := zipkit.CreateFromDirectory(ctx, "out.zip", "./src",
//	    zipkit.PackWithPassword("secret"),
//	    zipkit.PackWithKeepParentDirectory(true),
//	)
//
// Extract it again:
//
//	stats, err := zipkit.ExtractFile(ctx, "out.zip", "./dest",
//	    zipkit.ExtractWithPassword("secret"),
//	    zipkit.ExtractWithOverwrite(true),
//	)
//
// Read a single entry:
//
//	a, err := zipkit.Open("out.zip", zipkit.WithPassword("secret"))
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	content, err := a.ReadEntry("src/config.json")
//
// # Safety
//
// Extraction never writes outside the destination: entry names with ".."
// segments, absolute paths, drive letters or backslashes fail with
// [ErrUnsafeEntryPath], and all writes go through an [os.Root]. Files are
// written to a temporary name and renamed into place, so an interrupted
// extraction leaves no partial files.
//
// A wrong password is detected from the encryption header before any
// decompression and reported as [ErrAuthentication].
//
// # Concurrency
//
// An Archive is not safe for concurrent use. [RunBatch] runs independent
// pack and extract jobs, each with its own sessions, in parallel.
package zipkit
