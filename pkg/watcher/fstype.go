package watcher

import (
	"os"
	"path/filepath"
	"strings"
)

// FilesystemType classifies the filesystem backing a watched path.
// Remote and userspace filesystems deliver inotify events unreliably
// or not at all, so the watcher falls back to polling for them.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeSSHFS
	FSTypeFUSE
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeSSHFS:
		return "sshfs"
	case FSTypeFUSE:
		return "fuse"
	default:
		return "unknown"
	}
}

// detectFilesystemTypeFunc is indirected so tests can simulate remote mounts.
var detectFilesystemTypeFunc = DetectFilesystemType

// DetectFilesystemType reports a best-effort classification of the
// filesystem backing path. A path that does not exist yet classifies by
// its nearest existing ancestor, so a database created after the watcher
// starts still picks the right strategy.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return FSTypeUnknown
	}

	probe := abs
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return FSTypeUnknown
		}
		probe = parent
	}

	return classifyMount(probe)
}

// classifyMount matches path against the longest mount point prefix in
// the mount table. Platforms without /proc report local, which keeps
// fsnotify as the default strategy there.
func classifyMount(path string) FilesystemType {
	data, err := os.ReadFile("/proc/self/mounts")
	if err != nil {
		return FSTypeLocal
	}

	bestLen := -1
	best := FSTypeLocal
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsName := fields[1], fields[2]
		if !pathHasMountPrefix(path, mountPoint) || len(mountPoint) <= bestLen {
			continue
		}
		bestLen = len(mountPoint)
		best = classifyFSName(fsName)
	}
	return best
}

func classifyFSName(name string) FilesystemType {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "nfs"):
		return FSTypeNFS
	case name == "cifs" || name == "smbfs" || strings.HasPrefix(name, "smb"):
		return FSTypeSMB
	case strings.Contains(name, "sshfs"):
		return FSTypeSSHFS
	case strings.HasPrefix(name, "fuse"):
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

func pathHasMountPrefix(path, mountPoint string) bool {
	if mountPoint == "/" {
		return true
	}
	return path == mountPoint || strings.HasPrefix(path, mountPoint+"/")
}

// isRemoteFilesystem reports whether change notification cannot be
// trusted on the given filesystem.
func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeSSHFS, FSTypeFUSE:
		return true
	default:
		return false
	}
}
