//go:build linux

package render

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Raw DRM/KMS ioctl layer. Struct layouts mirror the kernel uapi
// (drm/drm_mode.h); field order is ABI, do not reorder.

const (
	drmIoctlBase = 'd'

	nrModeGetResources = 0xA0
	nrModeSetCrtc      = 0xA2
	nrModeGetEncoder   = 0xA6
	nrModeGetConnector = 0xA7
	nrModeAddFB        = 0xAE
	nrModeRmFB         = 0xAF
	nrModePageFlip     = 0xB0
	nrModeCreateDumb   = 0xB2
	nrModeMapDumb      = 0xB3
	nrModeDestroyDumb  = 0xB4

	connectionConnected = 1

	pageFlipEvent     = 0x01
	eventFlipComplete = 0x02
)

type drmModeInfo struct {
	Clock                                  uint32
	Hdisplay, HsyncStart, HsyncEnd, Htotal uint16
	Hskew                                  uint16
	Vdisplay, VsyncStart, VsyncEnd, Vtotal uint16
	Vscan                                  uint16
	Vrefresh                               uint32
	Flags                                  uint32
	Type                                   uint32
	Name                                   [32]byte
}

type drmModeCardRes struct {
	FBIDPtr            uint64
	CrtcIDPtr          uint64
	ConnectorIDPtr     uint64
	EncoderIDPtr       uint64
	CountFBs           uint32
	CountCrtcs         uint32
	CountConnectors    uint32
	CountEncoders      uint32
	MinWidth, MaxWidth uint32
	MinHeight          uint32
	MaxHeight          uint32
}

type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type drmModeGetEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

type drmModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FBID             uint32
	X, Y             uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeInfo
}

type drmModeCreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type drmModeMapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type drmModeDestroyDumb struct {
	Handle uint32
}

type drmModeFBCmd struct {
	FBID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32
	Depth  uint32
	Handle uint32
}

type drmModePageFlip struct {
	CrtcID   uint32
	FBID     uint32
	Flags    uint32
	Reserved uint32
	UserData uint64
}

// drmEvent is the fixed header of events read from the card fd.
type drmEvent struct {
	Type   uint32
	Length uint32
}

func iowr(nr, size uintptr) uintptr {
	// _IOC(_IOC_READ|_IOC_WRITE, 'd', nr, size)
	return (3 << 30) | (size << 16) | (drmIoctlBase << 8) | nr
}

func drmIoctl(fd int, nr uintptr, arg unsafe.Pointer, size uintptr) error {
	req := iowr(nr, size)
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}

func getResources(fd int) (*drmModeCardRes, []uint32, []uint32, error) {
	// Two-call pattern: first for counts, second with arrays sized to them.
	var res drmModeCardRes
	if err := drmIoctl(fd, nrModeGetResources, unsafe.Pointer(&res), unsafe.Sizeof(res)); err != nil {
		return nil, nil, nil, fmt.Errorf("mode getresources: %w", err)
	}

	connectors := make([]uint32, res.CountConnectors)
	crtcs := make([]uint32, res.CountCrtcs)
	if len(connectors) > 0 {
		res.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
	}
	if len(crtcs) > 0 {
		res.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcs[0])))
	}
	res.CountFBs = 0
	res.CountEncoders = 0
	res.FBIDPtr = 0
	res.EncoderIDPtr = 0
	if err := drmIoctl(fd, nrModeGetResources, unsafe.Pointer(&res), unsafe.Sizeof(res)); err != nil {
		return nil, nil, nil, fmt.Errorf("mode getresources: %w", err)
	}
	return &res, connectors, crtcs, nil
}

func getConnector(fd int, id uint32) (*drmModeGetConnector, []drmModeInfo, error) {
	var conn drmModeGetConnector
	conn.ConnectorID = id
	if err := drmIoctl(fd, nrModeGetConnector, unsafe.Pointer(&conn), unsafe.Sizeof(conn)); err != nil {
		return nil, nil, fmt.Errorf("mode getconnector %d: %w", id, err)
	}

	modes := make([]drmModeInfo, conn.CountModes)
	if len(modes) > 0 {
		conn.ModesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
	}
	conn.CountProps = 0
	conn.CountEncoders = 0
	conn.PropsPtr = 0
	conn.PropValuesPtr = 0
	conn.EncodersPtr = 0
	if err := drmIoctl(fd, nrModeGetConnector, unsafe.Pointer(&conn), unsafe.Sizeof(conn)); err != nil {
		return nil, nil, fmt.Errorf("mode getconnector %d: %w", id, err)
	}
	return &conn, modes, nil
}

func getEncoder(fd int, id uint32) (*drmModeGetEncoder, error) {
	var enc drmModeGetEncoder
	enc.EncoderID = id
	if err := drmIoctl(fd, nrModeGetEncoder, unsafe.Pointer(&enc), unsafe.Sizeof(enc)); err != nil {
		return nil, fmt.Errorf("mode getencoder %d: %w", id, err)
	}
	return &enc, nil
}

func setCrtc(fd int, crtcID, fbID, connectorID uint32, mode *drmModeInfo) error {
	connectors := [1]uint32{connectorID}
	crtc := drmModeCrtc{
		SetConnectorsPtr: uint64(uintptr(unsafe.Pointer(&connectors[0]))),
		CountConnectors:  1,
		CrtcID:           crtcID,
		FBID:             fbID,
		ModeValid:        1,
		Mode:             *mode,
	}
	if err := drmIoctl(fd, nrModeSetCrtc, unsafe.Pointer(&crtc), unsafe.Sizeof(crtc)); err != nil {
		return fmt.Errorf("mode setcrtc: %w", err)
	}
	return nil
}

func createDumb(fd int, width, height uint32) (*drmModeCreateDumb, error) {
	creq := drmModeCreateDumb{Height: height, Width: width, Bpp: 32}
	if err := drmIoctl(fd, nrModeCreateDumb, unsafe.Pointer(&creq), unsafe.Sizeof(creq)); err != nil {
		return nil, fmt.Errorf("create dumb buffer: %w", err)
	}
	return &creq, nil
}

func addFB(fd int, width, height, pitch, handle uint32) (uint32, error) {
	cmd := drmModeFBCmd{
		Width:  width,
		Height: height,
		Pitch:  pitch,
		Bpp:    32,
		Depth:  24,
		Handle: handle,
	}
	if err := drmIoctl(fd, nrModeAddFB, unsafe.Pointer(&cmd), unsafe.Sizeof(cmd)); err != nil {
		return 0, fmt.Errorf("add framebuffer: %w", err)
	}
	return cmd.FBID, nil
}

func rmFB(fd int, fbID uint32) error {
	if err := drmIoctl(fd, nrModeRmFB, unsafe.Pointer(&fbID), unsafe.Sizeof(fbID)); err != nil {
		return fmt.Errorf("remove framebuffer %d: %w", fbID, err)
	}
	return nil
}

func mapDumb(fd int, handle uint32, size uint64) ([]byte, error) {
	mreq := drmModeMapDumb{Handle: handle}
	if err := drmIoctl(fd, nrModeMapDumb, unsafe.Pointer(&mreq), unsafe.Sizeof(mreq)); err != nil {
		return nil, fmt.Errorf("map dumb buffer: %w", err)
	}
	data, err := unix.Mmap(fd, int64(mreq.Offset), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap dumb buffer: %w", err)
	}
	return data, nil
}

func destroyDumb(fd int, handle uint32) error {
	dreq := drmModeDestroyDumb{Handle: handle}
	if err := drmIoctl(fd, nrModeDestroyDumb, unsafe.Pointer(&dreq), unsafe.Sizeof(dreq)); err != nil {
		return fmt.Errorf("destroy dumb buffer %d: %w", handle, err)
	}
	return nil
}

func pageFlip(fd int, crtcID, fbID uint32) error {
	flip := drmModePageFlip{CrtcID: crtcID, FBID: fbID, Flags: pageFlipEvent}
	if err := drmIoctl(fd, nrModePageFlip, unsafe.Pointer(&flip), unsafe.Sizeof(flip)); err != nil {
		return fmt.Errorf("page flip: %w", err)
	}
	return nil
}

// waitFlip blocks until the kernel delivers the flip-complete event for the
// pending page flip, which is also the vsync wait.
func waitFlip(fd int) error {
	buf := make([]byte, 1024)
	for {
		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll drm fd: %w", err)
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return fmt.Errorf("read drm event: %w", err)
		}

		off := 0
		for off+int(unsafe.Sizeof(drmEvent{})) <= n {
			ev := (*drmEvent)(unsafe.Pointer(&buf[off]))
			if ev.Length == 0 || off+int(ev.Length) > n {
				break
			}
			if ev.Type == eventFlipComplete {
				return nil
			}
			off += int(ev.Length)
		}
	}
}
