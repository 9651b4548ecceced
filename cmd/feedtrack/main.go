// SPDX-License-Identifier: EPL-2.0

// Command feedtrack decodes an audio file and streams it into a Track,
// exercising the full producer-side pipeline this module carries end to
// end: format decode, resample, optional mono mix, and PCM16 write.
//
// It runs against an in-process fake mixer (internal/mixertest), since a
// real mixer process is out of this module's scope.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ik5/audiotrack/audio"
	"github.com/ik5/audiotrack/formats/aiff"
	"github.com/ik5/audiotrack/formats/mp3"
	"github.com/ik5/audiotrack/formats/vorbis"
	"github.com/ik5/audiotrack/formats/wav"
	"github.com/ik5/audiotrack/internal/mixertest"
	"github.com/ik5/audiotrack/track"
	"github.com/ik5/audiotrack/utils"
)

func main() {
	mono := flag.Bool("mono", false, "mix down to a single channel before writing")
	sampleRate := flag.Int("rate", 44100, "track sample rate")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: feedtrack [-mono] [-rate hz] <input.{wav|mp3|ogg|aiff}>")
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *sampleRate, *mono); err != nil {
		slog.Error("feedtrack failed", "error", err)
		os.Exit(1)
	}
}

func run(path string, rate int, mixToMono bool) error {
	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("ogg", vorbis.Decoder{})
	reg.Register("aif", aiff.Decoder{})
	reg.Register("aiff", aiff.Decoder{})

	ext := filepath.Ext(path)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	dec, ok := reg.Get(ext)
	if !ok {
		return fmt.Errorf("unsupported format: %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	src, err := dec.Decode(f)
	if err != nil {
		return err
	}
	defer src.Close()

	var pipeline audio.Source = audio.NewResampler(src, rate)
	channels := uint32(pipeline.Channels())
	if mixToMono {
		pipeline = audio.NewMonoMixer(pipeline)
		channels = 1
	}

	mixer := mixertest.NewFakeMixer(mixertest.Defaults{
		SampleRate: uint32(rate),
		FrameCount: 4096,
		LatencyMs:  200,
	})

	tr, err := track.New(track.Params{
		Mixer:        mixer,
		SampleRate:   uint32(rate),
		ChannelCount: channels,
		FrameCount:   16384,
	})
	if err != nil {
		return fmt.Errorf("track.New: %w", err)
	}
	defer tr.Close()

	if err := tr.Start(); err != nil {
		return fmt.Errorf("Start: %w", err)
	}

	buf := make([]float32, 4096)
	pcm := make([]byte, 0, 4096*2)
	total := 0

	for {
		n, rerr := pipeline.ReadSamples(buf)
		if n > 0 {
			pcm = pcm[:0]
			for _, s := range buf[:n] {
				v := utils.Float32ToInt16(s)
				pcm = append(pcm, byte(uint16(v)), byte(uint16(v)>>8))
			}
			written, werr := tr.Write(pcm)
			total += written
			if werr != nil {
				return fmt.Errorf("Write: %w", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("ReadSamples: %w", rerr)
		}
	}

	slog.Info("feedtrack done", "bytes_written", total, "channels", channels, "sample_rate", rate)
	return nil
}
