package host

import (
	"context"
	"fmt"

	"github.com/simple-gravity/gravity-host/pkg/protocol"
)

// dispatch delivers one input event to its export.
func (s *Session) dispatch(ctx context.Context, ev protocol.Event) error {
	out := s.out

	var err error
	switch e := ev.(type) {
	case protocol.Resize:
		err = out.Resize(ctx, e.Width, e.Height)
	case protocol.MouseMove:
		err = out.MouseMove(ctx, e.X, e.Y)
	case protocol.RawMouseMove:
		err = out.RawMouseMove(ctx, e.DX, e.DY)
	case protocol.MouseDown:
		err = out.MouseDown(ctx, e.X, e.Y, int32(e.Button))
	case protocol.MouseUp:
		err = out.MouseUp(ctx, e.X, e.Y, int32(e.Button))
	case protocol.MouseWheel:
		err = out.MouseWheel(ctx, e.DX, e.DY)
	case protocol.KeyDown:
		err = out.KeyDown(ctx, int32(e.Key), int32(e.Modifiers), e.Repeat)
	case protocol.KeyPress:
		err = out.KeyPress(ctx, int32(e.Char))
	case protocol.KeyUp:
		err = out.KeyUp(ctx, int32(e.Key))
	case protocol.Touch:
		err = out.Touch(ctx, e.ID, int32(e.Phase), e.X, e.Y)
	case protocol.Paste:
		err = out.Paste(ctx, e.Text)
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}

	if err != nil {
		return fmt.Errorf("dispatch %s: %w", ev.Type(), err)
	}
	return nil
}
