package radio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidChannel = errors.New("invalid channel")
var ErrNoChannels = errors.New("no channels")

// ParseChannels splits a channel list such as "0,1" or "'0','1'" and checks
// every index against the device's channel count for dir. Quotes are
// ignored; an empty entry such as in "0,,1" is an invalid channel.
func ParseChannels(s string, dir Direction, numChannels int) ([]int, error) {
	s = strings.NewReplacer(`"`, "", "'", "").Replace(s)
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: %s channel list is empty", ErrNoChannels, dir)
	}
	fields := strings.Split(s, ",")
	seen := make(map[int]bool, len(fields))
	chans := make([]int, 0, len(fields))
	for _, f := range fields {
		ch, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || ch < 0 || ch >= numChannels {
			return nil, fmt.Errorf("%w: %s channel %q (device has %d)", ErrInvalidChannel, dir, f, numChannels)
		}
		if seen[ch] {
			return nil, fmt.Errorf("%w: %s channel %d listed twice", ErrInvalidChannel, dir, ch)
		}
		seen[ch] = true
		chans = append(chans, ch)
	}
	return chans, nil
}
