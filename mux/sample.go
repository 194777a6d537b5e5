// Package mux implements the classic and hybrid fragmented MP4 muxers
// (spec §4.6, §4.7), built on top of the box tree in github.com/streammux/isobmff/box.
package mux

import "github.com/streammux/isobmff/box"

// TrackKind distinguishes the two media kinds a muxer accepts (spec §4.6).
type TrackKind uint8

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

// SampleFlags carries the per-sample attributes a muxer needs beyond
// timing and payload.
type SampleFlags struct {
	Sync bool // a random-access point (keyframe); governs stss/trun flags
}

// Sample is one access unit handed to a muxer's AppendSample, already in
// its track's timescale (spec §4.6.1, §4.7).
type Sample struct {
	Duration  uint32 // ticks until the next sample, in the track's timescale
	CTSOffset int32  // composition time offset from decode time, in timescale ticks
	Data      []byte
	Flags     SampleFlags
}

// TrackConfig describes one track a muxer will accept samples for.
type TrackConfig struct {
	Kind        TrackKind
	TrackID     uint32
	Timescale   uint32
	HandlerType box.BoxType // "vide" or "soun"
	HandlerName string
	// SampleEntry is the codec sample entry node (avc1, hev1, mp4a, Opus,
	// etc, with its codec-config child already attached) shared by every
	// sample on this track (spec §3.4).
	SampleEntry *box.Node
	// Width/Height (video) and ChannelCount/SampleRate (audio) live only on
	// the SampleEntry's own fields. The muxers do not read them: tkhd width
	// and height are written as zero.
}
