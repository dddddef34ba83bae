// Package dotosu reads the descriptive header of .osu beatmap files.
package dotosu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"osupp/ruleset"
)

const formatPrefix = "osu file format v"

type section int

const (
	secNone section = iota
	secGeneral
	secMetadata
	secDifficulty
	// anything from [Events] on is beatmap content
	secContent
)

type Header struct {
	FormatVersion int
	Mode          ruleset.ID
	Metadata      Metadata
	Difficulty    Difficulty
}

type Metadata struct {
	Title, Artist           string
	Creator, Version        string
	BeatmapID, BeatmapSetID int
}

type Difficulty struct {
	HPDrainRate, CircleSize, OverallDifficulty, ApproachRate float64
}

// Label is "Artist - Title [Version]".
func (h *Header) Label() string {
	return fmt.Sprintf("%s - %s [%s]", h.Metadata.Artist, h.Metadata.Title, h.Metadata.Version)
}

func ReadHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadHeader(f)
}

// ReadHeader parses the format line, [General] mode, [Metadata] and
// [Difficulty]. It stops at the first content section.
func ReadHeader(r io.Reader) (*Header, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var first string
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		first = line
		break
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.ToLower(first), formatPrefix) {
		return nil, fmt.Errorf("invalid .osu header: %q", first)
	}
	version, err := strconv.Atoi(strings.TrimSpace(first[len(formatPrefix):]))
	if err != nil {
		return nil, fmt.Errorf("invalid .osu version in header: %q: %w", first, err)
	}

	h := &Header{
		FormatVersion: version,
		Mode:          ruleset.Osu,
		Difficulty: Difficulty{
			HPDrainRate:       5,
			CircleSize:        5,
			OverallDifficulty: 5,
			ApproachRate:      -1,
		},
	}

	sec := secNone
scan:
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			switch strings.ToLower(line) {
			case "[general]":
				sec = secGeneral
			case "[metadata]":
				sec = secMetadata
			case "[difficulty]":
				sec = secDifficulty
			case "[events]", "[timingpoints]", "[colours]", "[hitobjects]":
				break scan
			default:
				sec = secNone
			}
			continue
		}

		k, v := splitKeyVal(line)
		switch sec {
		case secGeneral:
			if strings.EqualFold(k, "mode") {
				mode, err := ruleset.FromInt(parseInt(v, 0))
				if err != nil {
					return nil, fmt.Errorf("invalid .osu mode: %w", err)
				}
				h.Mode = mode
			}
		case secMetadata:
			switch strings.ToLower(k) {
			case "title":
				h.Metadata.Title = v
			case "artist":
				h.Metadata.Artist = v
			case "creator":
				h.Metadata.Creator = v
			case "version":
				h.Metadata.Version = v
			case "beatmapid":
				h.Metadata.BeatmapID = parseInt(v, 0)
			case "beatmapsetid":
				h.Metadata.BeatmapSetID = parseInt(v, 0)
			}
		case secDifficulty:
			switch strings.ToLower(k) {
			case "hpdrainrate":
				h.Difficulty.HPDrainRate = parseFloat(v, 5)
			case "circlesize":
				h.Difficulty.CircleSize = parseFloat(v, 5)
			case "overalldifficulty":
				h.Difficulty.OverallDifficulty = parseFloat(v, 5)
			case "approachrate":
				h.Difficulty.ApproachRate = parseFloat(v, 5)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// old beatmaps have no approach rate and use overall difficulty
	if h.Difficulty.ApproachRate < 0 {
		h.Difficulty.ApproachRate = h.Difficulty.OverallDifficulty
	}
	return h, nil
}

func splitKeyVal(line string) (key, val string) {
	i := strings.Index(line, ":")
	if i < 0 {
		return strings.TrimSpace(line), ""
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
}

func parseInt(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

func parseFloat(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return v
}
