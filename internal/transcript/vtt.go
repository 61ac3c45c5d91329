package transcript

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParseVTT parses a WebVTT caption file into raw segments. Cue payload
// text is kept as written; callers clean and merge separately.
func ParseVTT(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open captions: %w", err)
	}
	defer f.Close()

	var (
		segments []Segment
		current  *Segment
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.Contains(line, "-->"):
			if current != nil && current.Text != "" {
				segments = append(segments, *current)
			}
			start, end, err := parseCueTiming(line)
			if err != nil {
				return nil, err
			}
			current = &Segment{Start: start, End: end}
		case line == "":
			if current != nil && current.Text != "" {
				segments = append(segments, *current)
				current = nil
			}
		case current != nil:
			if current.Text != "" {
				current.Text += " "
			}
			current.Text += line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	if current != nil && current.Text != "" {
		segments = append(segments, *current)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no cues in %s", path)
	}
	return segments, nil
}

func parseCueTiming(line string) (float64, float64, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cue timing %q", line)
	}
	startFields := strings.Fields(parts[0])
	endFields := strings.Fields(parts[1])
	if len(startFields) == 0 || len(endFields) == 0 {
		return 0, 0, fmt.Errorf("malformed cue timing %q", line)
	}
	start, err := parseCueTime(startFields[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseCueTime(endFields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseCueTime accepts HH:MM:SS.mmm or MM:SS.mmm, with either '.' or ','
// before the milliseconds.
func parseCueTime(value string) (float64, error) {
	value = strings.ReplaceAll(value, ",", ".")
	fields := strings.Split(value, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, fmt.Errorf("malformed cue time %q", value)
	}
	var total float64
	for _, field := range fields {
		n, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed cue time %q", value)
		}
		total = total*60 + n
	}
	return total, nil
}
