//go:build windows

package mic

import (
	"fmt"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
)

// Core Audio identifiers.
var (
	clsidMMDeviceEnumerator = ole.NewGUID("{BCDE0395-E52F-467C-8E3D-C4579291692E}")
	iidIMMDeviceEnumerator  = ole.NewGUID("{A95664D2-9614-4F35-A746-DE8DB63617E6}")
	iidIAudioEndpointVolume = ole.NewGUID("{5CDF2C82-841E-4546-9722-0CF74078229A}")
)

const (
	eCapture  = 1
	eConsole  = 0
	clsctxAll = 0x17
)

// NewSystemEndpoint returns an Endpoint over the default capture device's
// IAudioEndpointVolume. Each operation opens and releases the COM objects
// so no apartment-affine pointer outlives the call.
func NewSystemEndpoint() Endpoint {
	return systemEndpoint{}
}

type systemEndpoint struct{}

func (systemEndpoint) Muted() (bool, error) {
	var muted bool
	err := withEndpointVolume(func(epv *audioEndpointVolume) error {
		return epv.GetMute(&muted)
	})
	return muted, err
}

func (systemEndpoint) SetMuted(muted bool) error {
	return withEndpointVolume(func(epv *audioEndpointVolume) error {
		return epv.SetMute(muted)
	})
}

func (systemEndpoint) Volume() (float64, error) {
	var scalar float32
	err := withEndpointVolume(func(epv *audioEndpointVolume) error {
		return epv.GetMasterVolumeLevelScalar(&scalar)
	})
	return float64(scalar), err
}

func (systemEndpoint) SetVolume(scalar float64) error {
	return withEndpointVolume(func(epv *audioEndpointVolume) error {
		return epv.SetMasterVolumeLevelScalar(float32(scalar))
	})
}

// withEndpointVolume opens the default capture endpoint's volume interface,
// runs f, and releases everything.
func withEndpointVolume(f func(*audioEndpointVolume) error) error {
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		// S_FALSE means the thread was already initialized; keep going.
		if oleErr, ok := err.(*ole.OleError); !ok || oleErr.Code() != uintptr(1) {
			return fmt.Errorf("CoInitializeEx: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := ole.CreateInstance(clsidMMDeviceEnumerator, iidIMMDeviceEnumerator)
	if err != nil {
		return fmt.Errorf("creating device enumerator: %w", err)
	}
	enum := (*deviceEnumerator)(unsafe.Pointer(unknown))
	defer enum.Release()

	var device *immDevice
	if err := enum.GetDefaultAudioEndpoint(eCapture, eConsole, &device); err != nil {
		return fmt.Errorf("default capture endpoint: %w", err)
	}
	defer device.Release()

	var epv *audioEndpointVolume
	if err := device.Activate(iidIAudioEndpointVolume, clsctxAll, &epv); err != nil {
		return fmt.Errorf("activating endpoint volume: %w", err)
	}
	defer epv.Release()

	return f(epv)
}

// ---- COM plumbing ----

type deviceEnumerator struct{ ole.IUnknown }

type deviceEnumeratorVtbl struct {
	ole.IUnknownVtbl
	EnumAudioEndpoints                     uintptr
	GetDefaultAudioEndpoint                uintptr
	GetDevice                              uintptr
	RegisterEndpointNotificationCallback   uintptr
	UnregisterEndpointNotificationCallback uintptr
}

func (e *deviceEnumerator) vtbl() *deviceEnumeratorVtbl {
	return (*deviceEnumeratorVtbl)(unsafe.Pointer(e.RawVTable))
}

func (e *deviceEnumerator) GetDefaultAudioEndpoint(dataFlow, role uint32, device **immDevice) error {
	hr, _, _ := syscall.SyscallN(e.vtbl().GetDefaultAudioEndpoint,
		uintptr(unsafe.Pointer(e)),
		uintptr(dataFlow),
		uintptr(role),
		uintptr(unsafe.Pointer(device)))
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}

type immDevice struct{ ole.IUnknown }

type immDeviceVtbl struct {
	ole.IUnknownVtbl
	Activate          uintptr
	OpenPropertyStore uintptr
	GetId             uintptr
	GetState          uintptr
}

func (d *immDevice) vtbl() *immDeviceVtbl {
	return (*immDeviceVtbl)(unsafe.Pointer(d.RawVTable))
}

func (d *immDevice) Activate(iid *ole.GUID, clsctx uint32, epv **audioEndpointVolume) error {
	hr, _, _ := syscall.SyscallN(d.vtbl().Activate,
		uintptr(unsafe.Pointer(d)),
		uintptr(unsafe.Pointer(iid)),
		uintptr(clsctx),
		0, // activation params
		uintptr(unsafe.Pointer(epv)))
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}

type audioEndpointVolume struct{ ole.IUnknown }

type audioEndpointVolumeVtbl struct {
	ole.IUnknownVtbl
	RegisterControlChangeNotify   uintptr
	UnregisterControlChangeNotify uintptr
	GetChannelCount               uintptr
	SetMasterVolumeLevel          uintptr
	SetMasterVolumeLevelScalar    uintptr
	GetMasterVolumeLevel          uintptr
	GetMasterVolumeLevelScalar    uintptr
	SetChannelVolumeLevel         uintptr
	SetChannelVolumeLevelScalar   uintptr
	GetChannelVolumeLevel         uintptr
	GetChannelVolumeLevelScalar   uintptr
	SetMute                       uintptr
	GetMute                       uintptr
	GetVolumeStepInfo             uintptr
	VolumeStepUp                  uintptr
	VolumeStepDown                uintptr
	QueryHardwareSupport          uintptr
	GetVolumeRange                uintptr
}

func (v *audioEndpointVolume) vtbl() *audioEndpointVolumeVtbl {
	return (*audioEndpointVolumeVtbl)(unsafe.Pointer(v.RawVTable))
}

func (v *audioEndpointVolume) GetMute(muted *bool) error {
	var b int32
	hr, _, _ := syscall.SyscallN(v.vtbl().GetMute,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(&b)))
	if hr != 0 {
		return ole.NewError(hr)
	}
	*muted = b != 0
	return nil
}

func (v *audioEndpointVolume) SetMute(muted bool) error {
	var b int32
	if muted {
		b = 1
	}
	hr, _, _ := syscall.SyscallN(v.vtbl().SetMute,
		uintptr(unsafe.Pointer(v)),
		uintptr(b),
		0) // event context GUID
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}

func (v *audioEndpointVolume) GetMasterVolumeLevelScalar(scalar *float32) error {
	hr, _, _ := syscall.SyscallN(v.vtbl().GetMasterVolumeLevelScalar,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(scalar)))
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}

func (v *audioEndpointVolume) SetMasterVolumeLevelScalar(scalar float32) error {
	hr, _, _ := syscall.SyscallN(v.vtbl().SetMasterVolumeLevelScalar,
		uintptr(unsafe.Pointer(v)),
		uintptr(*(*uint32)(unsafe.Pointer(&scalar))),
		0) // event context GUID
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}
