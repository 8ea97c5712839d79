package transport

import "io"

// pipeEnd is one end of the in-memory, full-duplex Stream pair that
// NewPipe builds for tests — the
// moral equivalent of the teacher's buffer-backed mockConn, but
// two-sided so a client Connection and a server Connection can be
// wired directly together without a real socket.
type pipeEnd struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeEnd) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeEnd) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeEnd) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
func (p *pipeEnd) CloseWrite() error { return p.w.Close() }

// NewPipe returns two connected Streams; bytes written to one are
// read from the other, in both directions.
func NewPipe() (a, b Stream) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &pipeEnd{r: ar, w: aw}, &pipeEnd{r: br, w: bw}
}
