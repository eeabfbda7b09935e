package live

import (
	"encoding/json"
	"fmt"

	"github.com/sacarolha/sacarolha/pkg/wine"
)

// FrameType discriminates live-protocol frames.
type FrameType string

const (
	// Client → server.

	// FrameNavigate requests navigation to Path.
	FrameNavigate FrameType = "navigate"
	// FrameSignIn submits login credentials.
	FrameSignIn FrameType = "signin"
	// FrameSignOut requests sign-out.
	FrameSignOut FrameType = "signout"
	// FrameResetPassword requests a password-reset email.
	FrameResetPassword FrameType = "reset_password"
	// FrameWineSave creates or updates a catalogue record: create when
	// Wine.ID is empty, update otherwise.
	FrameWineSave FrameType = "wine_save"
	// FrameWineDelete removes the record named by ID.
	FrameWineDelete FrameType = "wine_delete"
	// FrameWineGet asks for the record named by ID.
	FrameWineGet FrameType = "wine_get"

	// Server → client.

	// FrameLoading shows the loading placeholder with Message.
	FrameLoading FrameType = "loading"
	// FrameRender renders the screen at Path, with any attached data.
	FrameRender FrameType = "render"
	// FrameReplace replaces the browser location with Path. Replace, not
	// push: redirect hops must not pollute back-navigation.
	FrameReplace FrameType = "replace"
	// FrameNotice carries a one-off informational Message.
	FrameNotice FrameType = "notice"
	// FrameError reports a user-facing failure (sign-in, reset,
	// catalogue operations).
	FrameError FrameType = "error"
	// FrameWine carries one catalogue record, in answer to FrameWineGet
	// and after a successful FrameWineSave.
	FrameWine FrameType = "wine"
)

// Frame is one live-protocol message.
type Frame struct {
	Type FrameType `json:"type"`

	Path     string `json:"path,omitempty"`
	Message  string `json:"message,omitempty"`
	Code     string `json:"code,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`

	// ID names the catalogue record for get and delete operations.
	ID string `json:"id,omitempty"`
	// Wine is a single catalogue record.
	Wine *wine.Record `json:"wine,omitempty"`
	// Wines carries catalogue records on list screens.
	Wines []wine.Record `json:"wines,omitempty"`
}

// EncodeFrame marshals a frame for the wire.
func EncodeFrame(frame Frame) ([]byte, error) {
	return json.Marshal(frame)
}

// DecodeFrame parses a wire message.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("live: decoding frame: %w", err)
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("live: frame missing type")
	}
	return frame, nil
}
