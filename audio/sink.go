package audio

import (
	"sync"

	"github.com/google/uuid"
)

// Sink is the audio channel owned by one direction.
type Sink interface {
	SetVolume(volume float32)
	SetGains(low, mid, high float32)
	SetEchoDelay(seconds float32)
	// Connect routes the channel to the emitter with the given id.
	Connect(emitter uuid.UUID)
	Disconnect()
}

// Apply writes params onto sink. routeTo resolves the batch-local source index to the emitter
// the sink should be connected to; an unresolved index mutes the sink.
func Apply(sink Sink, params Params, routeTo func(index uint16) (uuid.UUID, bool)) {
	if params.Muted {
		sink.SetVolume(0)
		sink.Disconnect()
		return
	}
	emitter, ok := routeTo(params.Source)
	if !ok {
		sink.SetVolume(0)
		sink.Disconnect()
		return
	}

	sink.SetVolume(params.Volume)
	sink.SetGains(params.LowGain, params.MidGain, params.HighGain)
	sink.SetEchoDelay(params.EchoDelay)
	sink.Connect(emitter)
}

// SinkState is a snapshot of a RecordingSink.
type SinkState struct {
	Volume    float32
	LowGain   float32
	MidGain   float32
	HighGain  float32
	EchoDelay float32
	Emitter   uuid.UUID
	Connected bool
}

// RecordingSink is an in-memory Sink. It is safe for concurrent use.
type RecordingSink struct {
	mu     sync.Mutex
	state  SinkState
	writes int
}

func (s *RecordingSink) SetVolume(volume float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Volume = volume
	s.writes++
}

func (s *RecordingSink) SetGains(low, mid, high float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LowGain, s.state.MidGain, s.state.HighGain = low, mid, high
	s.writes++
}

func (s *RecordingSink) SetEchoDelay(seconds float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.EchoDelay = seconds
	s.writes++
}

func (s *RecordingSink) Connect(emitter uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Emitter, s.state.Connected = emitter, true
	s.writes++
}

func (s *RecordingSink) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Emitter, s.state.Connected = uuid.Nil, false
	s.writes++
}

// State returns the current settings of the sink.
func (s *RecordingSink) State() SinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Writes returns how many setter calls the sink has received.
func (s *RecordingSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
