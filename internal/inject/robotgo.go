package inject

import "github.com/go-vgo/robotgo"

// robotgoBackend is the production Clipboard and Keyboard implementation.
type robotgoBackend struct{}

func (robotgoBackend) Read() (string, error) {
	return robotgo.ReadAll()
}

func (robotgoBackend) Write(text string) error {
	return robotgo.WriteAll(text)
}

func (robotgoBackend) PasteChord() error {
	return robotgo.KeyTap("v", "ctrl")
}

func (robotgoBackend) TypeChar(r rune) error {
	robotgo.TypeStr(string(r))
	return nil
}
