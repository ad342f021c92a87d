package scanner

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// hostFS is a billy.Filesystem that resolves paths like the native
// filesystem, so relative and absolute source directories both work.
type hostFS struct {
	osfs.ChrootOS
}

// Chroot returns a new filesystem rooted at the provided path.
//
//nolint:ireturn // billy.Filesystem is an interface; signature is dictated by upstream.
func (h *hostFS) Chroot(path string) (billy.Filesystem, error) {
	return osfs.New(path), nil
}

// Root returns "/". Upload paths and source directories come from the
// command line as the user typed them, relative to the working directory or
// absolute anywhere on the host, so the filesystem cannot be confined to a
// subtree and must not rewrite them.
func (h *hostFS) Root() string {
	return "/"
}

// HostFS returns a filesystem backed by the operating system.
//
//nolint:ireturn // callers only need the billy interface.
func HostFS() billy.Filesystem {
	return &hostFS{}
}
