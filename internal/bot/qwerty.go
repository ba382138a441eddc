package bot

import "math/rand/v2"

// qwertyNeighbors maps each lowercase letter to its physically
// adjacent keys on a QWERTY layout. Bot typos press one of these, the
// same way a human finger slips.
var qwertyNeighbors = map[rune][]rune{
	'q': {'w', 'a'},
	'w': {'q', 'e', 's', 'a'},
	'e': {'w', 'r', 'd', 's'},
	'r': {'e', 't', 'f', 'd'},
	't': {'r', 'y', 'g', 'f'},
	'y': {'t', 'u', 'h', 'g'},
	'u': {'y', 'i', 'j', 'h'},
	'i': {'u', 'o', 'k', 'j'},
	'o': {'i', 'p', 'l', 'k'},
	'p': {'o', 'l'},
	'a': {'q', 'w', 's', 'z'},
	's': {'a', 'w', 'e', 'd', 'x', 'z'},
	'd': {'s', 'e', 'r', 'f', 'c', 'x'},
	'f': {'d', 'r', 't', 'g', 'v', 'c'},
	'g': {'f', 't', 'y', 'h', 'b', 'v'},
	'h': {'g', 'y', 'u', 'j', 'n', 'b'},
	'j': {'h', 'u', 'i', 'k', 'm', 'n'},
	'k': {'j', 'i', 'o', 'l', 'm'},
	'l': {'k', 'o', 'p'},
	'z': {'a', 's', 'x'},
	'x': {'z', 's', 'd', 'c'},
	'c': {'x', 'd', 'f', 'v'},
	'v': {'c', 'f', 'g', 'b'},
	'b': {'v', 'g', 'h', 'n'},
	'n': {'b', 'h', 'j', 'm'},
	'm': {'n', 'j', 'k'},
}

// wrongNeighbor returns a plausible mistyped key for c.
func wrongNeighbor(c rune, rng *rand.Rand) rune {
	if ns, ok := qwertyNeighbors[c]; ok {
		return ns[rng.IntN(len(ns))]
	}
	// Unknown key: slip onto a common home-row letter.
	home := []rune{'a', 's', 'd', 'f', 'j', 'k', 'l'}
	return home[rng.IntN(len(home))]
}
