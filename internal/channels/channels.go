// ABOUTME: Band III channel table
// ABOUTME: Maps DAB channel names such as 10B to their centre frequency
package channels

import (
	"fmt"
	"strings"
)

// DefaultChannel is tuned when the operator does not pick one
const DefaultChannel = "10B"

// Channel is one Band III block
type Channel struct {
	Name         string
	FrequencyKHz int
}

// Hz returns the centre frequency in Hz
func (c Channel) Hz() int {
	return c.FrequencyKHz * 1000
}

func (c Channel) String() string {
	return fmt.Sprintf("%s (%.3f MHz)", c.Name, float64(c.FrequencyKHz)/1000)
}

var bandIII = []Channel{
	{"5A", 174928}, {"5B", 176640}, {"5C", 178352}, {"5D", 180064},
	{"6A", 181936}, {"6B", 183648}, {"6C", 185360}, {"6D", 187072},
	{"7A", 188928}, {"7B", 190640}, {"7C", 192352}, {"7D", 194064},
	{"8A", 195936}, {"8B", 197648}, {"8C", 199360}, {"8D", 201072},
	{"9A", 202928}, {"9B", 204640}, {"9C", 206352}, {"9D", 208064},
	{"10A", 209936}, {"10N", 210096}, {"10B", 211648}, {"10C", 213360}, {"10D", 215072},
	{"11A", 216928}, {"11N", 217088}, {"11B", 218640}, {"11C", 220352}, {"11D", 222064},
	{"12A", 223936}, {"12N", 224096}, {"12B", 225648}, {"12C", 227360}, {"12D", 229072},
	{"13A", 230784}, {"13B", 232496}, {"13C", 234208}, {"13D", 235776}, {"13E", 237488}, {"13F", 239200},
}

// All returns every known channel in frequency order
func All() []Channel {
	out := make([]Channel, len(bandIII))
	copy(out, bandIII)
	return out
}

// Lookup finds a channel by name. Names are case-insensitive.
func Lookup(name string) (Channel, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for _, c := range bandIII {
		if c.Name == want {
			return c, nil
		}
	}
	return Channel{}, fmt.Errorf("unknown channel %q", name)
}
