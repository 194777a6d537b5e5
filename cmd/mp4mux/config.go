package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/streammux/isobmff/box"
	"github.com/streammux/isobmff/mux"
)

// muxConfig is the on-disk description of a mux job: one sample entry per
// track plus the ordered list of samples to append. Sample payloads are
// given as hex strings so a whole job round-trips through a single
// human-editable YAML file without auxiliary binary inputs.
type muxConfig struct {
	Output string        `yaml:"output"`
	Hybrid *hybridConfig `yaml:"hybrid,omitempty"`
	Tracks []trackConfig `yaml:"tracks"`
	// FaststartReservedBytes reserves a "free" box after ftyp big enough to
	// hold the final moov, so players can start playback before the whole
	// file downloads. Zero disables faststart.
	FaststartReservedBytes int `yaml:"faststart_reserved_bytes"`
}

type hybridConfig struct {
	ReferenceTrack        int    `yaml:"reference_track"`
	FragmentDurationTicks uint32 `yaml:"fragment_duration_ticks"`
}

type trackConfig struct {
	Kind        string         `yaml:"kind"` // "video" or "audio"
	TrackID     uint32         `yaml:"track_id"`
	Timescale   uint32         `yaml:"timescale"`
	HandlerName string         `yaml:"handler_name"`
	Codec       string         `yaml:"codec"` // "avc" or "aac"
	AVC         *avcConfig     `yaml:"avc,omitempty"`
	AAC         *aacConfig     `yaml:"aac,omitempty"`
	Samples     []sampleConfig `yaml:"samples"`
}

type avcConfig struct {
	ProfileIdc uint8  `yaml:"profile_idc"`
	LevelIdc   uint8  `yaml:"level_idc"`
	SPS        string `yaml:"sps_hex"`
	PPS        string `yaml:"pps_hex"`
	Width      uint16 `yaml:"width"`
	Height     uint16 `yaml:"height"`
}

type aacConfig struct {
	DecoderSpecificInfoHex string `yaml:"decoder_specific_info_hex"`
	ChannelCount           uint16 `yaml:"channel_count"`
	SampleRate             uint32 `yaml:"sample_rate"`
}

type sampleConfig struct {
	DataHex  string `yaml:"data_hex"`
	Duration uint32 `yaml:"duration"`
	CTSOffset int32 `yaml:"cts_offset"`
	Sync     bool   `yaml:"sync"`
}

func loadConfig(path string) (*muxConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg muxConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func (tc trackConfig) toTrackConfig() (mux.TrackConfig, error) {
	kind := mux.TrackVideo
	var handlerType box.BoxType
	switch tc.Kind {
	case "video":
		kind = mux.TrackVideo
		copy(handlerType[:], "vide")
	case "audio":
		kind = mux.TrackAudio
		copy(handlerType[:], "soun")
	default:
		return mux.TrackConfig{}, fmt.Errorf("track %d: unknown kind %q", tc.TrackID, tc.Kind)
	}

	entry, err := tc.buildSampleEntry()
	if err != nil {
		return mux.TrackConfig{}, fmt.Errorf("track %d: %w", tc.TrackID, err)
	}

	return mux.TrackConfig{
		Kind:        kind,
		TrackID:     tc.TrackID,
		Timescale:   tc.Timescale,
		HandlerType: handlerType,
		HandlerName: tc.HandlerName,
		SampleEntry: entry,
	}, nil
}

func (tc trackConfig) buildSampleEntry() (*box.Node, error) {
	switch tc.Codec {
	case "avc":
		if tc.AVC == nil {
			return nil, fmt.Errorf("codec avc requires an avc: block")
		}
		sps, err := hex.DecodeString(tc.AVC.SPS)
		if err != nil {
			return nil, fmt.Errorf("sps_hex: %w", err)
		}
		pps, err := hex.DecodeString(tc.AVC.PPS)
		if err != nil {
			return nil, fmt.Errorf("pps_hex: %w", err)
		}
		avcC := &box.AvcC{
			ConfigurationVersion: 1,
			Profile:              tc.AVC.ProfileIdc,
			Level:                tc.AVC.LevelIdc,
			LengthSizeMinusOne:   box.NewUint[uint8](3, 2, 0),
			SPS:                  []box.AVCParameterSet{{NALUnit: sps}},
			PPS:                  []box.AVCParameterSet{{NALUnit: pps}},
		}
		entry := &box.Avc1{}
		entry.Width, entry.Height, entry.DataReferenceIndex = tc.AVC.Width, tc.AVC.Height, 1
		return &box.Node{Box: entry, Children: []*box.Node{box.Leaf(avcC)}}, nil
	case "aac":
		if tc.AAC == nil {
			return nil, fmt.Errorf("codec aac requires an aac: block")
		}
		dsi, err := hex.DecodeString(tc.AAC.DecoderSpecificInfoHex)
		if err != nil {
			return nil, fmt.Errorf("decoder_specific_info_hex: %w", err)
		}
		esds := &box.Esds{Descriptor: box.EsDescriptor{
			ESID: 1,
			DecoderConfig: box.DecoderConfigDescriptor{
				ObjectTypeIndication: 0x40, // MPEG-4 Audio
				StreamType:           box.NewUint[uint8](0x05, 6, 2),
				DecoderSpecificInfo:  &box.DecoderSpecificInfo{Data: dsi},
			},
			SLConfig: box.SlConfigDescriptor{Predefined: 2},
		}}
		audioEntry := &box.Mp4a{}
		audioEntry.DataReferenceIndex = 1
		audioEntry.ChannelCount = tc.AAC.ChannelCount
		audioEntry.SampleSize = 16
		audioEntry.SampleRate = box.FixedPointNumber[uint16, uint16]{Integer: uint16(tc.AAC.SampleRate)}
		return &box.Node{Box: audioEntry, Children: []*box.Node{box.Leaf(esds)}}, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", tc.Codec)
	}
}
