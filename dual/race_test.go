//go:build race

package dual

const raceEnabled = true
