package engine

import (
	"io"
	"time"

	"github.com/comterm/comterm/internal/config"
	"github.com/comterm/comterm/internal/socketmux"
	"github.com/comterm/comterm/internal/transform"
)

// Renderer fans each device-originated byte through the render transform
// chain and delivers the post-render bytes, strictly in order, to the
// terminal, the log writer and the socket tap.
type Renderer struct {
	Opts    *config.Options
	Out     io.Writer
	TS      *transform.Timestamper
	Sockets *socketmux.Mux
	Now     func() time.Time

	log io.Writer
}

// SetLog installs (or, with nil, removes) the log writer; called by the 'f'
// command's open/close collaborator on the main task only.
func (r *Renderer) SetLog(w io.Writer) { r.log = w }

// Device renders one device byte: transform chain, then timestamp
// injection, then the terminal/log/socket fan-out.
func (r *Renderer) Device(b byte) {
	o := r.Opts.Snapshot()
	hexMode := o.OutputMode == config.OutputHex
	transform.Render(b, o.Map, hexMode, func(out byte) {
		if r.TS != nil && o.Timestamp != config.TimestampNone && o.OutputMode == config.OutputNormal {
			r.TS.SetMode(o.Timestamp)
			if prefix := r.TS.Prefix(out, r.now()); prefix != "" {
				r.emit([]byte(prefix))
			}
		}
		r.emit([]byte{out})
	})
}

// Echo writes a locally-generated byte (status text, local echo, prompt
// erasure) straight to the terminal, bypassing the device render chain.
func (r *Renderer) Echo(b byte) {
	r.Out.Write([]byte{b})
}

func (r *Renderer) emit(p []byte) {
	r.Out.Write(p)
	if r.log != nil {
		r.log.Write(p)
	}
	if r.Sockets != nil {
		r.Sockets.Broadcast(p)
	}
}

func (r *Renderer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
