package controller

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// tcell reports every printable key as KeyRune. The board gives the letters it binds keys of
// their own, numbered past tcell's named keys, so that all bindings share one map.
const (
	KeyA tcell.Key = iota + 1024
	KeyE
	KeyG
	KeyJ
	KeyN
	KeyP
	KeyQ
	KeyR
	KeyU
	KeyV
	KeyShiftC
	KeyShiftD
	KeyShiftN
	KeyShiftO
	KeyShiftT
)

var runeKeys = map[rune]tcell.Key{
	'a': KeyA,
	'e': KeyE,
	'g': KeyG,
	'j': KeyJ,
	'n': KeyN,
	'p': KeyP,
	'q': KeyQ,
	'r': KeyR,
	'u': KeyU,
	'v': KeyV,
	'C': KeyShiftC,
	'D': KeyShiftD,
	'N': KeyShiftN,
	'O': KeyShiftO,
	'T': KeyShiftT,
}

func init() {
	for r, key := range runeKeys {
		tcell.KeyNames[key] = fmt.Sprintf("%c", r)
	}
}

// AsKey returns the key bound to evt, translating the letters above.
func AsKey(evt *tcell.EventKey) tcell.Key {
	if evt.Key() == tcell.KeyRune {
		if key, ok := runeKeys[evt.Rune()]; ok {
			return key
		}
	}

	return evt.Key()
}
