// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// Remixer averages every source frame down to one value and writes it to
// each of its output channels. With one output channel it is a plain mono
// mixer.
type Remixer struct {
	src      Source
	channels int
	tmp      []float32
}

func NewRemixer(src Source, channels int) (*Remixer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}
	return &Remixer{
		src:      src,
		channels: channels,
		tmp:      make([]float32, 4096),
	}, nil
}

func (m *Remixer) SampleRate() int { return m.src.SampleRate() }
func (m *Remixer) Channels() int   { return m.channels }

func (m *Remixer) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (m *Remixer) ReadSamples(dst []float32) (int, error) {
	if len(dst)%m.channels != 0 {
		return 0, ErrInvalidDstSize
	}
	if len(dst) == 0 {
		return 0, nil
	}

	in := m.src.Channels()
	if in == 1 && m.channels == 1 {
		return m.src.ReadSamples(dst)
	}

	need := len(dst) / m.channels * in
	if cap(m.tmp) < need {
		m.tmp = make([]float32, max(need, 8192))
	}
	m.tmp = m.tmp[:need]

	n, err := m.src.ReadSamples(m.tmp)
	frames := n / in
	if frames == 0 {
		return 0, err
	}

	inv := 1 / float32(in)
	for f := range frames {
		var v float32
		switch in {
		case 1:
			v = m.tmp[f]
		case 2:
			v = (m.tmp[2*f] + m.tmp[2*f+1]) * 0.5
		default:
			for _, s := range m.tmp[f*in : (f+1)*in] {
				v += s
			}
			v *= inv
		}

		out := dst[f*m.channels : (f+1)*m.channels]
		for c := range out {
			out[c] = v
		}
	}

	return frames * m.channels, err
}
