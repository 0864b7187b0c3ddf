package radio

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseChannels(t *testing.T) {
	tests := []struct {
		s     string
		n     int
		chans []int
		err   error
	}{
		{"0", 1, []int{0}, nil},
		{"0,1", 2, []int{0, 1}, nil},
		{"1,0", 2, []int{1, 0}, nil},
		{"'0','1'", 2, []int{0, 1}, nil},
		{`"2, 3"`, 4, []int{2, 3}, nil},
		{"1", 1, nil, ErrInvalidChannel},
		{"0,0", 2, nil, ErrInvalidChannel},
		{"-1", 2, nil, ErrInvalidChannel},
		{"a", 2, nil, ErrInvalidChannel},
		{"", 2, nil, ErrNoChannels},
		{"''", 2, nil, ErrNoChannels},
		{",", 2, nil, ErrInvalidChannel},
		{"0,,1", 2, nil, ErrInvalidChannel},
		{"0,", 2, nil, ErrInvalidChannel},
		{" ,1", 2, nil, ErrInvalidChannel},
	}
	for _, tt := range tests {
		chans, err := ParseChannels(tt.s, RX, tt.n)
		if !errors.Is(err, tt.err) {
			t.Errorf("ParseChannels(%q, %d) error %v, want %v", tt.s, tt.n, err, tt.err)
			continue
		}
		if err == nil && !reflect.DeepEqual(chans, tt.chans) {
			t.Errorf("ParseChannels(%q, %d) = %v, want %v", tt.s, tt.n, chans, tt.chans)
		}
	}
}
