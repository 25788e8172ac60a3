package fswatch

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Reported notifications produce a file record; the move and directory bits
// are needed only to keep the watch set in step with the tree.
const (
	reportedMask = unix.IN_CREATE | unix.IN_ATTRIB | unix.IN_MODIFY |
		unix.IN_CLOSE_WRITE | unix.IN_DELETE | unix.IN_DELETE_SELF
	watchMask = reportedMask | unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_ISDIR
)

const readBufferSize = 4096 * (unix.SizeofInotifyEvent + unix.NAME_MAX + 1)

// inotify is the kernel notification source. A self-pipe lets Interrupt
// wake a goroutine blocked in Wait.
type inotify struct {
	fd   int
	wake [2]int
	buf  []byte
}

func newInotify() (*inotify, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		if errors.Is(err, unix.EMFILE) {
			return nil, fmt.Errorf("failed to initialize inotify (try increasing /proc/sys/fs/inotify/max_user_instances): %w", err)
		}
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}
	in := &inotify{fd: fd, buf: make([]byte, readBufferSize)}
	if err := unix.Pipe2(in.wake[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to create wake pipe: %w", err)
	}
	return in, nil
}

func (in *inotify) AddWatch(path string, mask uint32) (int, error) {
	wd, err := unix.InotifyAddWatch(in.fd, path, mask)
	if err != nil {
		return -1, err
	}
	return wd, nil
}

func (in *inotify) RemoveWatch(wd int) error {
	_, err := unix.InotifyRmWatch(in.fd, uint32(wd))
	return err
}

// Wait blocks until notifications are available, the timeout expires
// (timedOut is true) or Interrupt is called (errInterrupted).
func (in *inotify) Wait(timeout time.Duration) ([]notification, bool, error) {
	fds := []unix.PollFd{
		{Fd: int32(in.fd), Events: unix.POLLIN},
		{Fd: int32(in.wake[0]), Events: unix.POLLIN},
	}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("poll on inotify descriptor failed: %w", err)
	}
	if n == 0 {
		return nil, true, nil
	}
	if fds[1].Revents != 0 {
		return nil, false, errInterrupted
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		return nil, false, fmt.Errorf("inotify descriptor failed (revents %#x)", fds[0].Revents)
	}

	read, err := unix.Read(in.fd, in.buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read from inotify descriptor failed: %w", err)
	}
	return parseEvents(in.buf[:read]), false, nil
}

func (in *inotify) Interrupt() {
	_, _ = unix.Write(in.wake[1], []byte{0})
}

// Close frees the descriptors. No goroutine may be in Wait.
func (in *inotify) Close() error {
	err := unix.Close(in.fd)
	unix.Close(in.wake[0])
	unix.Close(in.wake[1])
	return err
}

func parseEvents(buf []byte) []notification {
	var out []notification
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + int(raw.Len)
		if nameEnd > len(buf) {
			break
		}
		name := buf[nameStart:nameEnd]
		for i, b := range name {
			if b == 0 {
				name = name[:i]
				break
			}
		}
		out = append(out, notification{
			wd:     int(raw.Wd),
			mask:   raw.Mask,
			cookie: raw.Cookie,
			name:   string(name),
		})
		offset = nameEnd
	}
	return out
}
