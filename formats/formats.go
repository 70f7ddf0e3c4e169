// SPDX-License-Identifier: EPL-2.0

// Package formats wires every decoder into one audio.Registry keyed by
// file extension.
package formats

import (
	"github.com/ik5/funcgen/audio"
	"github.com/ik5/funcgen/formats/aiff"
	"github.com/ik5/funcgen/formats/mp3"
	"github.com/ik5/funcgen/formats/vorbis"
	"github.com/ik5/funcgen/formats/wav"
)

// NewRegistry returns a registry knowing wav, mp3, ogg and aiff files.
func NewRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	r.Register("wave", wav.Decoder{})
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("oga", vorbis.Decoder{})
	r.Register("aiff", aiff.Decoder{})
	r.Register("aif", aiff.Decoder{})
	return r
}
