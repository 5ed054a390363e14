// ABOUTME: Summarizes a dump directory written by dabdump
// ABOUTME: Reports per-service audio length, label counts and slide counts
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dabdump/dabdump/internal/capture"
	"github.com/dabdump/dabdump/internal/record"
	"github.com/dabdump/dabdump/pkg/audio/wav"
	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type serviceSummary struct {
	Name       string
	Label      string
	SampleRate int
	Duration   time.Duration
	AudioBytes int64
	Labels     int
	Slides     int
	Ensembles  int
	Invalid    int
}

func main() {
	dir := flag.String("o", ".", "Dump directory to summarize")
	flag.Parse()

	summaries, err := summarize(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(summaries) == 0 {
		fmt.Printf("No services found in %s\n", *dir)
		return
	}
	report(os.Stdout, summaries)
}

// summarize scans every service directory below dir
func summarize(dir string) ([]serviceSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump directory: %w", err)
	}

	var out []serviceSummary
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "0x") {
			continue
		}
		s, err := summarizeService(filepath.Join(dir, e.Name()), e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func summarizeService(dir, name string) (serviceSummary, error) {
	s := serviceSummary{Name: name}
	prefix := filepath.Join(dir, name)

	if r, err := wav.Open(prefix + capture.AudioExt); err == nil {
		info := r.Info()
		_ = r.Close()
		s.SampleRate = info.SampleRate
		s.AudioBytes = info.DataBytes
		if info.SampleRate > 0 {
			s.Duration = time.Duration(info.Frames()) * time.Second / time.Duration(info.SampleRate)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return s, fmt.Errorf("failed to read audio for %s: %w", name, err)
	}

	if err := countRecords(prefix+capture.LogExt, &s); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s, fmt.Errorf("failed to read log for %s: %w", name, err)
	}

	slides, err := filepath.Glob(prefix + "-*.*")
	if err != nil {
		return s, err
	}
	s.Slides = len(slides)
	return s, nil
}

func countRecords(path string, s *serviceSummary) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		tag, raw, err := record.Decode(line)
		if err != nil {
			s.Invalid++
			continue
		}
		switch tag {
		case record.TagDLS:
			s.Labels++
		case record.TagEnsemble:
			s.Ensembles++
		case record.TagService:
			var svc record.Service
			if err := json.Unmarshal(raw, &svc); err == nil {
				s.Label = svc.ServiceLabel
			}
		}
	}
	return scanner.Err()
}

func report(w io.Writer, summaries []serviceSummary) {
	var total int64
	for _, s := range summaries {
		label := s.Label
		if label == "" {
			label = "?"
		}
		fmt.Fprintf(w, "%s  %-16s  %6dHz  %10s  %9s  %4d labels  %3d slides",
			s.Name, label, s.SampleRate, s.Duration.Round(time.Second),
			humanize.Bytes(uint64(s.AudioBytes)), s.Labels, s.Slides)
		if s.Invalid > 0 {
			fmt.Fprintf(w, "  (%d invalid lines)", s.Invalid)
		}
		fmt.Fprintln(w)
		total += s.AudioBytes
	}
	fmt.Fprintf(w, "%d services, %s of audio\n", len(summaries), humanize.Bytes(uint64(total)))
}
