package session

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/pkg/sftp"
)

// DefaultMaxReadBytes is the read_file ceiling applied when a caller does
// not specify one.
const DefaultMaxReadBytes = 1024 * 1024 // 1 MiB

const sftpReadChunk = 8192

// listDirectory lists path over the open SFTP subsystem, excludes "." and
// "..", and sorts ascending by name.
func listDirectory(client *sftp.Client, dir string) ([]FileEntry, error) {
	entries, err := client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sftp readdir %s: %w", dir, err)
	}

	out := make([]FileEntry, 0, len(entries))
	for _, info := range entries {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}

		var mtime *uint64
		if t := info.ModTime(); !t.IsZero() {
			v := uint64(t.Unix())
			mtime = &v
		}

		isDir := info.IsDir()
		if st, ok := info.Sys().(*sftp.FileStat); ok {
			isDir = statIsDir(st.Mode)
		}

		out = append(out, FileEntry{
			Path:       path.Join(dir, name),
			Name:       name,
			IsDir:      isDir,
			SizeBytes:  uint64(info.Size()),
			MtimeEpoch: mtime,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// statIsDir applies the POSIX mode-bit test for a directory entry:
// (mode & 0o170000) == 0o040000. Go's os.FileMode decodes the type bits
// into its own constants, which do not match this mask, so listDirectory
// passes the raw POSIX st_mode from the *sftp.FileStat behind each entry
// (fs.FileInfo.Sys()) instead of fs.FileInfo.Mode().
func statIsDir(mode uint32) bool {
	const sIFMT = 0o170000
	const sIFDIR = 0o040000
	return mode&sIFMT == sIFDIR
}

// readFile reads up to limit bytes in 8 KiB chunks, then probes one
// additional byte to distinguish an exact-limit file from a truncated one
// without including the probe byte in the result.
func readFile(client *sftp.Client, remotePath string, limit uint64) (ReadFileResult, error) {
	f, err := client.Open(remotePath)
	if err != nil {
		return ReadFileResult{}, fmt.Errorf("sftp open %s: %w", remotePath, err)
	}
	defer f.Close()

	out := make([]byte, 0, min64(limit, sftpReadChunk))
	buf := make([]byte, sftpReadChunk)

	for uint64(len(out)) < limit {
		remaining := limit - uint64(len(out))
		toRead := uint64(len(buf))
		if remaining < toRead {
			toRead = remaining
		}
		n, rerr := f.Read(buf[:toRead])
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return ReadFileResult{}, fmt.Errorf("sftp read %s: %w", remotePath, rerr)
		}
		if n == 0 {
			break
		}
	}

	truncated := false
	if uint64(len(out)) >= limit {
		var probe [1]byte
		n, rerr := f.Read(probe[:])
		switch {
		case rerr == io.EOF || (rerr == nil && n == 0):
			truncated = false
		case rerr == nil && n > 0:
			truncated = true
		case rerr != nil:
			return ReadFileResult{}, fmt.Errorf("sftp read %s: %w", remotePath, rerr)
		}
	}

	return ReadFileResult{Path: remotePath, Bytes: out, Truncated: truncated}, nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// shellEscape applies POSIX single-quote escaping: surround with '…' and
// replace every embedded ' with '\''. Used only for the resource sampler's
// df command, never for the interactive PTY stream.
func shellEscape(value string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range value {
		if r == '\'' {
			b.WriteString(`'\''`)
		} else {
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
