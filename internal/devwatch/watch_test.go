package devwatch

import (
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestQualifiesFiltersByExtensionAndOp(t *testing.T) {
	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write dong", fsnotify.Event{Name: "prog.dong", Op: fsnotify.Write}, true},
		{"create dong", fsnotify.Event{Name: "prog.dong", Op: fsnotify.Create}, true},
		{"uppercase extension", fsnotify.Event{Name: "PROG.DONG", Op: fsnotify.Write}, true},
		{"wrong extension", fsnotify.Event{Name: "prog.txt", Op: fsnotify.Write}, false},
		{"remove is ignored", fsnotify.Event{Name: "prog.dong", Op: fsnotify.Remove}, false},
		{"chmod is ignored", fsnotify.Event{Name: "prog.dong", Op: fsnotify.Chmod}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := qualifies(tc.ev); got != tc.want {
				t.Fatalf("qualifies(%+v) = %v, want %v", tc.ev, got, tc.want)
			}
		})
	}
}
