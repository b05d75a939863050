package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/danmuck/wsocket/internal/compress"
	"github.com/danmuck/wsocket/internal/keepalive"
	"github.com/danmuck/wsocket/internal/protocol/frame"
	"github.com/danmuck/wsocket/internal/protocol/parser"
)

const (
	PingPayload = "ping"
	PongPayload = "pong"
)

type Option func(*Session)

// WithSendHook sets the outbound byte sink. The hook owns each slice it receives.
func WithSendHook(fn func([]byte)) Option {
	return func(s *Session) { s.send = fn }
}

func WithRegistry(r *compress.Registry) Option {
	return func(s *Session) { s.registry = r }
}

func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithSequencer sets the context keep-alive callbacks run in. It must be the
// same serialization the owner uses around Feed and sends.
func WithSequencer(seq keepalive.Sequencer) Option {
	return func(s *Session) { s.seq = seq }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

func WithListener(l Listener) Option {
	return func(s *Session) { s.AddListener(l) }
}

// Session turns inbound bytes into listener events and outbound calls into frames.
// It is not safe for concurrent use except for State, Codec and Stats.
type Session struct {
	cfg       Config
	log       zerolog.Logger
	registry  *compress.Registry
	allowed   []compress.Type
	send      func([]byte)
	clock     clock.Clock
	seq       keepalive.Sequencer
	listeners []Listener
	parser    *parser.Parser
	keepalive *keepalive.Policy

	codec      compress.Codec
	negotiated bool
	state      atomic.Uint32
	codecType  atomic.Uint32
	stats      counters
}

// New builds a session in StateInit. It fails when configured codec names are not registered.
func New(cfg Config, opts ...Option) (*Session, error) {
	s := &Session{
		cfg: cfg.WithDefaults(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.Compression.Enabled {
		if s.registry == nil {
			s.registry = compress.Default()
		}
		if len(s.cfg.Compression.Codecs) == 0 {
			s.allowed = s.registry.ParseAdvertisedList(s.registry.Supported())
		} else {
			allowed, err := s.registry.Types(s.cfg.Compression.Codecs)
			if err != nil {
				return nil, err
			}
			s.allowed = allowed
		}
	}

	s.parser = parser.New(
		parser.ListenerFunc(s.onFrame),
		s.cfg.ReceiveBufferSize,
		frame.Limits{MaxPayloadBytes: s.cfg.MaxPayloadBytes},
	)
	s.parser.SetMinRead(s.cfg.MinReadSize)

	kaOpts := []keepalive.Option{keepalive.WithSequencer(s.seq)}
	if s.clock != nil {
		kaOpts = append(kaOpts, keepalive.WithClock(s.clock))
	}
	s.keepalive = keepalive.New(s.cfg.KeepAlive, keepaliveHooks{s}, kaOpts...)
	return s, nil
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Codec reports the negotiated codec type, compress.None until negotiation succeeds.
func (s *Session) Codec() compress.Type {
	return compress.Type(s.codecType.Load())
}

func (s *Session) Config() Config { return s.cfg }

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(uint32(next)))
	if prev == next {
		return
	}
	s.log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("session state")
	if next.Terminal() {
		s.keepalive.Stop()
		s.releaseCodec()
	}
}

func (s *Session) require(op string, want State) {
	if have := s.State(); have != want {
		panic(fmt.Sprintf("session: %s requires %s, have %s", op, want, have))
	}
}

func (s *Session) requireOpen(op string) {
	if have := s.State(); have.Terminal() {
		panic(fmt.Sprintf("session: %s requires open session, have %s", op, have))
	}
}

// Start arms keep-alive. Inbound bytes keep it flushed afterwards.
func (s *Session) Start() {
	s.requireOpen("Start")
	s.keepalive.Start()
}

// Stop disarms keep-alive without changing state.
func (s *Session) Stop() {
	s.keepalive.Stop()
}

// SetKeepAliveExpiry changes the probe interval and resets the timeout to three times it.
func (s *Session) SetKeepAliveExpiry(d time.Duration) {
	s.keepalive.SetExpiry(d)
}

// Handshake sends the local System frame and moves to StateConnecting.
func (s *Session) Handshake() {
	s.require("Handshake", StateInit)
	s.setState(StateConnecting)
	s.write(frame.Header{Fin: true, Opcode: frame.OpcodeSystem}, []byte(s.handshakePayload()))
}

func (s *Session) SendText(text string, fin bool) {
	s.require("SendText", StateConnected)
	s.sendData(frame.OpcodeText, []byte(text), fin)
}

func (s *Session) SendBinary(p []byte, fin bool) {
	s.require("SendBinary", StateConnected)
	s.sendData(frame.OpcodeBinary, p, fin)
}

func (s *Session) Ping() {
	s.requireOpen("Ping")
	s.write(frame.Header{Fin: true, Opcode: frame.OpcodePing}, []byte(PingPayload))
}

func (s *Session) Pong() {
	s.requireOpen("Pong")
	s.write(frame.Header{Fin: true, Opcode: frame.OpcodePong}, []byte(PongPayload))
}

// Close starts the close handshake with the code's default reason.
func (s *Session) Close(code frame.CloseCode) {
	s.CloseWithReason(code, code.Message())
}

// CloseWithReason sends a Close frame and moves to StateClosing. A reason that
// does not fit a control frame raises ErrReasonTooLong and closes with
// CloseInternalError and no reason instead.
func (s *Session) CloseWithReason(code frame.CloseCode, reason string) {
	if have := s.State(); have == StateClosed {
		panic(fmt.Sprintf("session: Close requires open session, have %s", have))
	}
	if 2+len(reason) > frame.ShortPayload {
		s.emitError(fmt.Errorf("%w: %d bytes", ErrReasonTooLong, len(reason)))
		s.CloseWithReason(frame.CloseInternalError, "")
		return
	}
	if s.State() != StateError {
		s.setState(StateClosing)
	}
	s.writeClose(code, reason)
}

// Fail records a transport failure reported by the owner.
func (s *Session) Fail(err error) {
	if s.State().Terminal() {
		return
	}
	if err == nil {
		err = ErrUnexpected
	}
	s.setState(StateError)
	s.emitError(err)
}

// Feed appends inbound bytes and dispatches every complete frame.
func (s *Session) Feed(p []byte) {
	if s.State().Terminal() || len(p) == 0 {
		return
	}
	s.parser.Feed(p)
	s.received(len(p))
}

// PrepareWrite returns the span the owner should read into.
func (s *Session) PrepareWrite() []byte {
	return s.parser.PrepareWrite()
}

// CommitWrite marks n bytes read into the PrepareWrite span and dispatches frames.
func (s *Session) CommitWrite(n int) {
	if n <= 0 {
		return
	}
	s.parser.CommitWrite(n)
	if s.State().Terminal() {
		return
	}
	s.received(n)
}

func (s *Session) received(n int) {
	s.stats.bytesIn.Add(uint64(n))
	if s.keepalive.Running() {
		s.keepalive.Flush()
	}
	for !s.State().Terminal() {
		ok, err := s.parser.ParseOne()
		if err != nil {
			s.parseFailed(err)
			return
		}
		if !ok {
			return
		}
	}
}

func (s *Session) parseFailed(err error) {
	if errors.Is(err, frame.ErrPayloadTooLarge) {
		s.abort(fmt.Errorf("%w: %v", ErrPayloadTooLong, err), frame.CloseMessageTooBig)
		return
	}
	s.abort(fmt.Errorf("%w: %v", ErrSysFrame, err), frame.CloseProtocolError)
}

// abort sends a best-effort Close, enters StateError and reports err.
func (s *Session) abort(err error, code frame.CloseCode) {
	if s.State().Terminal() {
		return
	}
	s.writeClose(code, code.Message())
	s.setState(StateError)
	s.emitError(err)
}

func (s *Session) onFrame(f frame.Frame) {
	if s.State().Terminal() {
		return
	}
	s.stats.framesIn.Add(1)
	switch f.Header.Opcode {
	case frame.OpcodeSystem:
		s.onSystem(f.Payload)
	case frame.OpcodeText:
		if p, ok := s.inboundData(f); ok {
			s.emitText(p, f.Header.Fin)
		}
	case frame.OpcodeBinary:
		if p, ok := s.inboundData(f); ok {
			s.emitBinary(p, f.Header.Fin)
		}
	case frame.OpcodeClose:
		s.onClose(f.Payload)
	case frame.OpcodePing:
		s.emitPing()
	case frame.OpcodePong:
		s.emitPong()
	default:
		s.abort(fmt.Errorf("%w: opcode %s", ErrSysFrame, f.Header.Opcode), frame.CloseProtocolError)
	}
}

func (s *Session) onClose(p []byte) {
	if len(p) < 2 {
		return
	}
	code := frame.CloseCode(binary.BigEndian.Uint16(p))
	reason := string(p[2:])
	if s.State() != StateClosing {
		s.writeClose(frame.CloseNormal, frame.CloseNormal.Message())
	}
	s.setState(StateClosed)
	s.emitClose(code, reason)
}

func (s *Session) inboundData(f frame.Frame) ([]byte, bool) {
	p := f.Payload
	if f.Header.Compressed {
		if s.codec == nil {
			s.emitError(fmt.Errorf("%w: no codec negotiated", ErrDecompress))
			return nil, false
		}
		plain, err := s.codec.Decompress(p)
		if err != nil {
			s.emitError(err)
			return nil, false
		}
		p = plain
	}
	if len(p) == 0 && s.cfg.RejectEmptyMessages {
		s.emitError(fmt.Errorf("%w: inbound %s", ErrMessageEmpty, f.Header.Opcode))
		return nil, false
	}
	return p, true
}

func (s *Session) sendData(op frame.Opcode, p []byte, fin bool) {
	if len(p) == 0 && s.cfg.RejectEmptyMessages {
		s.emitError(fmt.Errorf("%w: outbound %s", ErrMessageEmpty, op))
		return
	}
	h := frame.Header{Fin: fin, Opcode: op}
	if s.codec != nil && len(p) >= s.cfg.Compression.Threshold {
		packed, err := s.codec.Compress(p)
		switch {
		case err != nil:
			s.emitError(err)
		case len(packed) < len(p):
			h.Compressed = true
			p = packed
		}
	}
	if uint64(len(p)) > s.cfg.MaxPayloadBytes {
		s.emitError(fmt.Errorf("%w: outbound %d bytes exceeds %d", ErrPayloadTooLong, len(p), s.cfg.MaxPayloadBytes))
		return
	}
	s.write(h, p)
}

func (s *Session) writeClose(code frame.CloseCode, reason string) {
	p := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(p, uint16(code))
	p = append(p, reason...)
	s.write(frame.Header{Fin: true, Opcode: frame.OpcodeClose}, p)
}

func (s *Session) write(h frame.Header, p []byte) {
	buf := frame.AppendFrame(make([]byte, 0, frame.MaxHeaderLen+len(p)), h, p)
	s.stats.framesOut.Add(1)
	s.stats.bytesOut.Add(uint64(len(buf)))
	if s.send != nil {
		s.send(buf)
	}
}

func (s *Session) releaseCodec() {
	if c, ok := s.codec.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.log.Debug().Err(err).Msg("codec close")
		}
	}
	s.codec = nil
}

type keepaliveHooks struct {
	s *Session
}

// OnExpired probes the peer and waits another expiry for activity.
func (h keepaliveHooks) OnExpired() {
	if h.s.State().Terminal() {
		return
	}
	h.s.keepalive.Rearm()
	h.s.Ping()
}

func (h keepaliveHooks) OnTimedOut() {
	h.s.abort(ErrKeepAliveTimeout, frame.CloseProtocolError)
}
