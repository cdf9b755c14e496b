package mic

import (
	"errors"
	"testing"
)

type mockEndpoint struct {
	muted    bool
	volume   float64
	queryErr error
	setErr   error

	setMutedCalls  int
	setVolumeCalls int
}

func (m *mockEndpoint) Muted() (bool, error) { return m.muted, m.queryErr }

func (m *mockEndpoint) SetMuted(muted bool) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.setMutedCalls++
	m.muted = muted
	return nil
}

func (m *mockEndpoint) Volume() (float64, error) { return m.volume, m.queryErr }

func (m *mockEndpoint) SetVolume(scalar float64) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.setVolumeCalls++
	m.volume = scalar
	return nil
}

func TestConditionHealthyIsUntouched(t *testing.T) {
	ep := &mockEndpoint{muted: false, volume: 0.6}
	r, err := New(ep).Condition()
	if err != nil {
		t.Fatal(err)
	}
	if r.Unmuted || r.Raised {
		t.Errorf("report = %+v, want no changes", r)
	}
	if ep.setMutedCalls != 0 || ep.setVolumeCalls != 0 {
		t.Error("healthy endpoint must not be modified")
	}
}

func TestConditionUnmutes(t *testing.T) {
	ep := &mockEndpoint{muted: true, volume: 0.6}
	r, err := New(ep).Condition()
	if err != nil {
		t.Fatal(err)
	}
	if !r.WasMuted || !r.Unmuted {
		t.Errorf("report = %+v, want unmute", r)
	}
	if ep.muted {
		t.Error("endpoint still muted")
	}
	if r.Raised {
		t.Error("adequate volume must not be raised")
	}
}

func TestConditionRaisesLowVolume(t *testing.T) {
	ep := &mockEndpoint{volume: 0.05}
	r, err := New(ep).Condition()
	if err != nil {
		t.Fatal(err)
	}
	if !r.Raised {
		t.Errorf("report = %+v, want raise", r)
	}
	if ep.volume != 0.8 {
		t.Errorf("volume = %v, want 0.8", ep.volume)
	}
	if r.OldVolume != 0.05 {
		t.Errorf("OldVolume = %v, want 0.05", r.OldVolume)
	}
}

func TestConditionMutedAndSilent(t *testing.T) {
	ep := &mockEndpoint{muted: true, volume: 0}
	r, err := New(ep).Condition()
	if err != nil {
		t.Fatal(err)
	}
	if !r.Unmuted || !r.Raised {
		t.Errorf("report = %+v, want both fixes", r)
	}
}

func TestConditionErrors(t *testing.T) {
	ep := &mockEndpoint{queryErr: errors.New("com failure")}
	if _, err := New(ep).Condition(); !errors.Is(err, ErrMicUnavailable) {
		t.Errorf("query failure = %v, want ErrMicUnavailable", err)
	}

	ep = &mockEndpoint{muted: true, setErr: errors.New("access denied")}
	if _, err := New(ep).Condition(); !errors.Is(err, ErrMicUnavailable) {
		t.Errorf("set failure = %v, want ErrMicUnavailable", err)
	}
}
