package dmm

import "strings"

const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func validKey(k string) bool {
	if k == "" {
		return false
	}
	for i := 0; i < len(k); i++ {
		if strings.IndexByte(keyAlphabet, k[i]) < 0 {
			return false
		}
	}
	return true
}

// keyLess orders keys the way map editors do: lowercase before uppercase.
func keyLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := 0; i < len(a); i++ {
		ia, ib := strings.IndexByte(keyAlphabet, a[i]), strings.IndexByte(keyAlphabet, b[i])
		if ia != ib {
			return ia < ib
		}
	}
	return false
}

func keyAt(n, length int) string {
	b := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		b[i] = keyAlphabet[n%len(keyAlphabet)]
		n /= len(keyAlphabet)
	}
	return string(b)
}

func keyCapacity(length int) int {
	c := 1
	for k := 0; k < length; k++ {
		c *= len(keyAlphabet)
	}
	return c
}

// assignKeys gives every record in use a unique key, keeping existing
// keys unless the dictionary has outgrown the current key length.
func (m *Map) assignKeys() {
	recs := m.liveRecords()
	length := max(m.keyLen, 1)
	for keyCapacity(length) < len(recs) {
		length++
	}
	if length != m.keyLen {
		for _, r := range recs {
			r.key = ""
		}
		m.keyLen = length
	}

	used := make(map[string]bool, len(recs))
	for _, r := range recs {
		if r.key == "" {
			continue
		}
		if len(r.key) != length || used[r.key] {
			r.key = ""
			continue
		}
		used[r.key] = true
	}
	next := 0
	for _, r := range recs {
		if r.key != "" {
			continue
		}
		for used[keyAt(next, length)] {
			next++
		}
		r.key = keyAt(next, length)
		used[r.key] = true
	}
}
